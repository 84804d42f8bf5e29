package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"contentagent/internal/domain"
	"contentagent/internal/ports"
)

// fakeCache is a scriptable in-memory ports.Cache.
type fakeCache struct {
	records  []domain.InboxRecord
	statsErr error
	getErr   error
	deleted  int
}

func (f *fakeCache) IndexRecords(ctx context.Context, items []domain.InboxRecord) (int, error) {
	f.records = append(f.records, items...)
	return len(items), nil
}

func (f *fakeCache) GetAll(ctx context.Context) ([]domain.InboxRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.records, nil
}

func (f *fakeCache) DeleteByNaturalKeys(ctx context.Context, keys map[domain.NaturalKey]struct{}) (int, error) {
	remaining := f.records[:0]
	for _, r := range f.records {
		if _, drop := keys[r.Key()]; drop {
			f.deleted++
			continue
		}
		remaining = append(remaining, r)
	}
	f.records = remaining
	return f.deleted, nil
}

func (f *fakeCache) RebuildIndex(ctx context.Context, items []domain.InboxRecord) (int, error) {
	f.records = items
	return len(items), nil
}

func (f *fakeCache) Stats(ctx context.Context) (ports.CacheStats, error) {
	if f.statsErr != nil {
		return ports.CacheStats{}, f.statsErr
	}
	return ports.CacheStats{Rows: len(f.records), Location: "memory"}, nil
}

func newTestManager(t *testing.T, cache ports.Cache) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), cache, testLogger())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func inboxRecord(originalID, authorID string) domain.InboxRecord {
	return domain.InboxRecord{
		ID:          domain.NewRecordID(),
		Source:      domain.SourceX,
		OriginalID:  originalID,
		AuthorID:    authorID,
		AuthorName:  "author",
		Content:     "content " + originalID,
		PublishedAt: time.Now().UTC(),
		FetchedAt:   time.Now().UTC(),
	}
}

func TestInitLayout(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	if err := m.InitLayout(); err != nil {
		t.Fatalf("InitLayout: %v", err)
	}

	for _, rel := range []string{"subscriptions/x_creators.jsonl", "subscriptions/rss_feeds.jsonl"} {
		if _, err := os.Stat(filepath.Join(m.Root(), rel)); err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
	}
	for _, dir := range []string{"inbox", "curated/archives", "blogs", "github", "metrics"} {
		if _, err := os.Stat(filepath.Join(m.Root(), dir)); err != nil {
			t.Fatalf("missing dir %s: %v", dir, err)
		}
	}
}

func TestReadInboxServedFromWarmCache(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{records: []domain.InboxRecord{inboxRecord("cached", "a1")}}
	m := newTestManager(t, cache)

	// Durable store is empty; a warm cache serves the read anyway.
	records, err := m.ReadInbox(context.Background())
	if err != nil {
		t.Fatalf("ReadInbox: %v", err)
	}
	if len(records) != 1 || records[0].OriginalID != "cached" {
		t.Fatalf("got %+v, want the cached record", records)
	}
}

func TestReadInboxFallsBackOnCacheFailure(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{statsErr: errors.New("cache down")}
	m := newTestManager(t, cache)

	durable := inboxRecord("durable", "a1")
	if err := m.AppendInbox([]domain.InboxRecord{durable}); err != nil {
		t.Fatalf("AppendInbox: %v", err)
	}

	records, err := m.ReadInbox(context.Background())
	if err != nil {
		t.Fatalf("ReadInbox: %v", err)
	}
	if len(records) != 1 || records[0].OriginalID != "durable" {
		t.Fatalf("got %+v, want the durable record", records)
	}
}

func TestReadInboxColdCacheReadsDurable(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, &fakeCache{})
	if err := m.AppendInbox([]domain.InboxRecord{inboxRecord("x", "a1")}); err != nil {
		t.Fatalf("AppendInbox: %v", err)
	}

	records, err := m.ReadInbox(context.Background())
	if err != nil {
		t.Fatalf("ReadInbox: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 from the durable store", len(records))
	}
}

func TestInboxKeys(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	a := inboxRecord("1", "a1")
	b := inboxRecord("2", "a2")
	if err := m.AppendInbox([]domain.InboxRecord{a, b}); err != nil {
		t.Fatalf("AppendInbox: %v", err)
	}

	keys, err := m.InboxKeys()
	if err != nil {
		t.Fatalf("InboxKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	if _, ok := keys[a.Key()]; !ok {
		t.Fatal("missing key for first record")
	}
}

func TestRemoveInboxRecords(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{}
	m := newTestManager(t, cache)

	a := inboxRecord("1", "a1")
	b := inboxRecord("2", "a2")
	if err := m.AppendInbox([]domain.InboxRecord{a, b}); err != nil {
		t.Fatalf("AppendInbox: %v", err)
	}
	if _, err := cache.IndexRecords(context.Background(), []domain.InboxRecord{a, b}); err != nil {
		t.Fatalf("IndexRecords: %v", err)
	}

	removed, err := m.RemoveInboxRecords(context.Background(), []domain.InboxRecord{a})
	if err != nil {
		t.Fatalf("RemoveInboxRecords: %v", err)
	}
	if removed != 1 {
		t.Fatalf("got %d removed, want 1", removed)
	}
	if cache.deleted != 1 {
		t.Fatalf("got %d cache deletions, want 1", cache.deleted)
	}

	remaining, _ := m.InboxKeys()
	if _, ok := remaining[a.Key()]; ok {
		t.Fatal("removed record still present")
	}
	if _, ok := remaining[b.Key()]; !ok {
		t.Fatal("untouched record missing")
	}
}

func TestRemoveInboxRecordsDeletesEmptyFile(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	a := inboxRecord("1", "a1")
	if err := m.AppendInbox([]domain.InboxRecord{a}); err != nil {
		t.Fatalf("AppendInbox: %v", err)
	}

	if _, err := m.RemoveInboxRecords(context.Background(), []domain.InboxRecord{a}); err != nil {
		t.Fatalf("RemoveInboxRecords: %v", err)
	}

	if _, err := os.Stat(filepath.Join(m.Root(), "inbox/items.jsonl")); !os.IsNotExist(err) {
		t.Fatal("empty inbox file must be deleted, not left as zero lines")
	}
}

func TestAdvanceCreatorCursor(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	if err := m.AppendCreators([]domain.Creator{{ID: "c1", Username: "alice"}}); err != nil {
		t.Fatalf("AppendCreators: %v", err)
	}

	cursor := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	if err := m.AdvanceCreatorCursor("c1", cursor); err != nil {
		t.Fatalf("AdvanceCreatorCursor: %v", err)
	}

	creators, err := m.ReadCreators()
	if err != nil {
		t.Fatalf("ReadCreators: %v", err)
	}
	if creators[0].LastFetchedAt == nil || !creators[0].LastFetchedAt.Equal(cursor) {
		t.Fatalf("got cursor %v, want %v", creators[0].LastFetchedAt, cursor)
	}
}

func TestArchiveCurated(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	date := "2026-08-24"
	if err := m.WriteCurated(date, []domain.CuratedRecord{{ID: "r1", Score: 90, Rank: 1}}); err != nil {
		t.Fatalf("WriteCurated: %v", err)
	}

	if err := m.ArchiveCurated(date); err != nil {
		t.Fatalf("ArchiveCurated: %v", err)
	}

	if _, err := os.Stat(filepath.Join(m.Root(), "curated", date+"_ranked.jsonl")); !os.IsNotExist(err) {
		t.Fatal("shortlist still present after archive")
	}
	if _, err := os.Stat(filepath.Join(m.Root(), "curated/archives", date+"_ranked.jsonl")); err != nil {
		t.Fatalf("archived shortlist missing: %v", err)
	}

	// Archiving a date with no shortlist is a no-op.
	if err := m.ArchiveCurated("1999-01-01"); err != nil {
		t.Fatalf("ArchiveCurated on missing date: %v", err)
	}
}

func TestIssueMirrorOverwrite(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	if err := m.WriteIssues([]domain.Issue{{Number: 1, Title: "old"}}); err != nil {
		t.Fatalf("WriteIssues: %v", err)
	}
	if err := m.WriteIssues([]domain.Issue{{Number: 1, Title: "new"}, {Number: 2, Title: "second"}}); err != nil {
		t.Fatalf("WriteIssues: %v", err)
	}

	issues, err := m.ReadIssues()
	if err != nil {
		t.Fatalf("ReadIssues: %v", err)
	}
	if len(issues) != 2 || issues[0].Title != "new" {
		t.Fatalf("got %+v, want the overwritten mirror", issues)
	}
}
