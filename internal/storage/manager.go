package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"contentagent/internal/domain"
	"contentagent/internal/ports"
)

const (
	creatorsPath = "subscriptions/x_creators.jsonl"
	feedsPath    = "subscriptions/rss_feeds.jsonl"
	inboxPath    = "inbox/items.jsonl"
	issuesPath   = "github/issues.jsonl"
	metricsPath  = "metrics/stats.jsonl"
)

// Manager coordinates access to every data collection. The JSONL files are
// the single source of truth; the cache, when present, only accelerates
// inbox reads and is always allowed to fail.
type Manager struct {
	jsonl    *JSONLStore
	markdown *MarkdownStore
	cache    ports.Cache
	logger   *slog.Logger
}

// NewManager builds the storage coordinator. cache may be nil.
func NewManager(root string, cache ports.Cache, logger *slog.Logger) (*Manager, error) {
	jsonl, err := NewJSONLStore(root, logger)
	if err != nil {
		return nil, err
	}
	return &Manager{
		jsonl:    jsonl,
		markdown: NewMarkdownStore(root),
		cache:    cache,
		logger:   logger,
	}, nil
}

// Root returns the data root directory.
func (m *Manager) Root() string {
	return m.jsonl.Root()
}

// JSONL exposes the underlying line-record store for cursor updates.
func (m *Manager) JSONL() *JSONLStore {
	return m.jsonl
}

// InitLayout creates the directory tree and empty subscription files.
func (m *Manager) InitLayout() error {
	dirs := []string{
		"subscriptions", "inbox", "curated/archives", "blogs",
		"github", "metrics", "logs", "index",
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(m.jsonl.Root(), dir), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	for _, rel := range []string{creatorsPath, feedsPath} {
		path := filepath.Join(m.jsonl.Root(), rel)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, nil, 0o644); err != nil {
				return fmt.Errorf("create %s: %w", rel, err)
			}
		}
	}

	return nil
}

// Subscriptions.

// ReadCreators returns all X creator subscriptions.
func (m *Manager) ReadCreators() ([]domain.Creator, error) {
	rows, err := m.jsonl.ReadAll(creatorsPath)
	if err != nil {
		return nil, err
	}
	return Decode[domain.Creator](rows, m.logger), nil
}

// AppendCreators adds creator subscriptions.
func (m *Manager) AppendCreators(creators []domain.Creator) error {
	rows, err := Encode(creators)
	if err != nil {
		return err
	}
	return m.jsonl.Append(creatorsPath, rows)
}

// ReadFeeds returns all RSS feed subscriptions.
func (m *Manager) ReadFeeds() ([]domain.Feed, error) {
	rows, err := m.jsonl.ReadAll(feedsPath)
	if err != nil {
		return nil, err
	}
	return Decode[domain.Feed](rows, m.logger), nil
}

// AppendFeeds adds feed subscriptions.
func (m *Manager) AppendFeeds(feeds []domain.Feed) error {
	rows, err := Encode(feeds)
	if err != nil {
		return err
	}
	return m.jsonl.Append(feedsPath, rows)
}

// AdvanceCreatorCursor sets a creator's last_fetched_at after a successful
// fetch for that creator only.
func (m *Manager) AdvanceCreatorCursor(creatorID string, t time.Time) error {
	_, err := m.jsonl.UpdateField(creatorsPath, "id", creatorID, "last_fetched_at", t.UTC().Format(time.RFC3339))
	return err
}

// AdvanceFeedCursor sets a feed's last_fetched_at after a successful fetch.
func (m *Manager) AdvanceFeedCursor(feedID string, t time.Time) error {
	_, err := m.jsonl.UpdateField(feedsPath, "id", feedID, "last_fetched_at", t.UTC().Format(time.RFC3339))
	return err
}

// Inbox.

// ReadInbox returns all pending inbox records. When the cache is warm it
// serves the read; any cache failure or a cold cache falls back to the
// durable store.
func (m *Manager) ReadInbox(ctx context.Context) ([]domain.InboxRecord, error) {
	if m.cache != nil {
		stats, err := m.cache.Stats(ctx)
		switch {
		case err != nil:
			m.logger.Warn("cache stats failed, falling back to durable store", "error", err)
		case stats.Rows > 0:
			records, err := m.cache.GetAll(ctx)
			if err == nil {
				m.logger.Debug("inbox served from cache", "count", len(records))
				return records, nil
			}
			m.logger.Warn("cache read failed, falling back to durable store", "error", err)
		default:
			m.logger.Debug("cache cold, reading durable store")
		}
	}

	return m.readInboxDurable()
}

func (m *Manager) readInboxDurable() ([]domain.InboxRecord, error) {
	rows, err := m.jsonl.ReadAll(inboxPath)
	if err != nil {
		return nil, err
	}
	return Decode[domain.InboxRecord](rows, m.logger), nil
}

// AppendInbox persists new inbox records to the durable store.
func (m *Manager) AppendInbox(items []domain.InboxRecord) error {
	rows, err := Encode(items)
	if err != nil {
		return err
	}
	return m.jsonl.Append(inboxPath, rows)
}

// InboxKeys returns the natural keys currently persisted in the durable
// store. This is the long-lived "already seen" set for ingestion.
func (m *Manager) InboxKeys() (map[domain.NaturalKey]struct{}, error) {
	records, err := m.readInboxDurable()
	if err != nil {
		return nil, err
	}

	keys := make(map[domain.NaturalKey]struct{}, len(records))
	for _, r := range records {
		keys[r.Key()] = struct{}{}
	}
	return keys, nil
}

// RemoveInboxRecords deletes the given records from the inbox by natural
// key, mirroring the deletion into the cache best-effort. Returns the number
// of records removed from the durable store.
func (m *Manager) RemoveInboxRecords(ctx context.Context, items []domain.InboxRecord) (int, error) {
	keys := make(map[domain.NaturalKey]struct{}, len(items))
	for _, item := range items {
		keys[item.Key()] = struct{}{}
	}

	if m.cache != nil {
		if _, err := m.cache.DeleteByNaturalKeys(ctx, keys); err != nil {
			m.logger.Warn("cache delete failed, durable store remains authoritative", "error", err)
		}
	}

	all, err := m.readInboxDurable()
	if err != nil {
		return 0, err
	}

	remaining := make([]domain.InboxRecord, 0, len(all))
	for _, r := range all {
		if _, drop := keys[r.Key()]; drop {
			continue
		}
		remaining = append(remaining, r)
	}

	removed := len(all) - len(remaining)
	if removed == 0 {
		return 0, nil
	}

	if len(remaining) == 0 {
		if err := m.jsonl.Remove(inboxPath); err != nil {
			return 0, err
		}
		return removed, nil
	}

	rows, err := Encode(remaining)
	if err != nil {
		return 0, err
	}
	if err := m.jsonl.Write(inboxPath, rows); err != nil {
		return 0, err
	}
	return removed, nil
}

// Curated shortlists.

func curatedPath(date string) string {
	return fmt.Sprintf("curated/%s_ranked.jsonl", date)
}

// ReadCurated returns the shortlist for a date.
func (m *Manager) ReadCurated(date string) ([]domain.CuratedRecord, error) {
	rows, err := m.jsonl.ReadAll(curatedPath(date))
	if err != nil {
		return nil, err
	}
	return Decode[domain.CuratedRecord](rows, m.logger), nil
}

// WriteCurated appends the shortlist for a date.
func (m *Manager) WriteCurated(date string, items []domain.CuratedRecord) error {
	rows, err := Encode(items)
	if err != nil {
		return err
	}
	return m.jsonl.Append(curatedPath(date), rows)
}

// ArchiveCurated moves a consumed shortlist into the archives directory.
// The move, not a delete, is the marker that generation used it.
func (m *Manager) ArchiveCurated(date string) error {
	src := filepath.Join(m.jsonl.Root(), curatedPath(date))
	dst := filepath.Join(m.jsonl.Root(), "curated/archives", filepath.Base(curatedPath(date)))

	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create archives dir: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("archive shortlist: %w", err)
	}
	return nil
}

// Issues.

// ReadIssues returns the stored issue mirror.
func (m *Manager) ReadIssues() ([]domain.Issue, error) {
	rows, err := m.jsonl.ReadAll(issuesPath)
	if err != nil {
		return nil, err
	}
	return Decode[domain.Issue](rows, m.logger), nil
}

// WriteIssues overwrites the issue mirror.
func (m *Manager) WriteIssues(issues []domain.Issue) error {
	rows, err := Encode(issues)
	if err != nil {
		return err
	}
	return m.jsonl.Write(issuesPath, rows)
}

// Metrics.

// ReadMetrics returns the metric history.
func (m *Manager) ReadMetrics() ([]domain.MetricStat, error) {
	rows, err := m.jsonl.ReadAll(metricsPath)
	if err != nil {
		return nil, err
	}
	return Decode[domain.MetricStat](rows, m.logger), nil
}

// AppendMetrics adds metric snapshots to the history.
func (m *Manager) AppendMetrics(stats []domain.MetricStat) error {
	rows, err := Encode(stats)
	if err != nil {
		return err
	}
	return m.jsonl.Append(metricsPath, rows)
}

// Blogs.

// WriteBlog persists a generated blog artifact.
func (m *Manager) WriteBlog(filename string, post domain.BlogPost) error {
	return m.markdown.WriteBlogPost(filepath.Join("blogs", filename), post)
}
