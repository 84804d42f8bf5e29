package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"contentagent/internal/domain"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Example Blog</title>
  <item>
    <title>Newest Post</title>
    <link>https://example.com/newest</link>
    <guid>guid-newest</guid>
    <description><![CDATA[<p>Rich <b>HTML</b> summary.</p>]]></description>
    <pubDate>Mon, 24 Aug 2026 09:00:00 +0000</pubDate>
    <dc:creator>Jane Writer</dc:creator>
    <category>ai</category>
    <category>research</category>
  </item>
  <item>
    <title>Old Post</title>
    <link>https://example.com/old</link>
    <pubDate>Mon, 03 Aug 2026 09:00:00 +0000</pubDate>
    <description>Old content.</description>
  </item>
</channel>
</rss>`

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchFeedItems(t *testing.T) {
	t.Parallel()

	srv := serveFeed(t, sampleFeed)
	feed := domain.Feed{ID: "f1", URL: srv.URL, Title: "Example Blog"}

	records, err := NewRSSClient().FetchFeedItems(context.Background(), feed, nil, 10)
	if err != nil {
		t.Fatalf("FetchFeedItems: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.Source != domain.SourceRSS {
		t.Fatalf("got source %q, want rss", first.Source)
	}
	if first.OriginalID != "guid-newest" {
		t.Fatalf("got original id %q, want the guid", first.OriginalID)
	}
	if first.AuthorName != "Jane Writer" {
		t.Fatalf("got author %q, want the dc:creator", first.AuthorName)
	}
	if strings.Contains(first.Content, "<") {
		t.Fatalf("markup not stripped: %q", first.Content)
	}
	if !strings.Contains(first.Content, "Rich HTML summary.") {
		t.Fatalf("got content %q, want the flattened text", first.Content)
	}
	if len(first.Categories) != 2 {
		t.Fatalf("got %d categories, want 2", len(first.Categories))
	}
	if first.FeedID != "f1" || first.FeedTitle != "Example Blog" {
		t.Fatalf("feed fields not set: %+v", first)
	}

	// The second item has no guid: the link serves as original id.
	if records[1].OriginalID != "https://example.com/old" {
		t.Fatalf("got original id %q, want the link fallback", records[1].OriginalID)
	}
}

func TestFetchFeedItemsSinceCursor(t *testing.T) {
	t.Parallel()

	srv := serveFeed(t, sampleFeed)
	feed := domain.Feed{ID: "f1", URL: srv.URL}
	since := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	records, err := NewRSSClient().FetchFeedItems(context.Background(), feed, &since, 10)
	if err != nil {
		t.Fatalf("FetchFeedItems: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want only the one past the cursor", len(records))
	}
	if records[0].Title != "Newest Post" {
		t.Fatalf("got %q, want Newest Post", records[0].Title)
	}
}

func TestFetchFeedItemsEntryAtCursorIsSkipped(t *testing.T) {
	t.Parallel()

	srv := serveFeed(t, sampleFeed)
	feed := domain.Feed{ID: "f1", URL: srv.URL}
	// Exactly the newest item's timestamp: at-or-before the cursor is skipped.
	since := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)

	records, err := NewRSSClient().FetchFeedItems(context.Background(), feed, &since, 10)
	if err != nil {
		t.Fatalf("FetchFeedItems: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records, want none", len(records))
	}
}

func TestFetchFeedItemsLimit(t *testing.T) {
	t.Parallel()

	srv := serveFeed(t, sampleFeed)
	feed := domain.Feed{ID: "f1", URL: srv.URL}

	records, err := NewRSSClient().FetchFeedItems(context.Background(), feed, nil, 1)
	if err != nil {
		t.Fatalf("FetchFeedItems: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want the limit of 1", len(records))
	}
}

func TestFetchFeedItemsServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := NewRSSClient().FetchFeedItems(context.Background(), domain.Feed{URL: srv.URL}, nil, 10)
	if err == nil {
		t.Fatal("expected an error for a failing feed")
	}
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"<p>hello <b>world</b></p>", "hello world"},
		{"plain text", "plain text"},
		{"", ""},
		{"<div>\n  spread\n  out\n</div>", "spread out"},
	}

	for _, tc := range cases {
		if got := stripHTML(tc.in); got != tc.want {
			t.Errorf("stripHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
