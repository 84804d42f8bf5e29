package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"contentagent/internal/domain"
	"contentagent/internal/ports"
)

const excerptLimit = 500

// RSSClient fetches and parses RSS 2.0 feeds.
type RSSClient struct {
	client *http.Client
}

var _ ports.FeedSource = (*RSSClient)(nil)

// NewRSSClient builds the adapter.
func NewRSSClient() *RSSClient {
	return &RSSClient{client: &http.Client{Timeout: 30 * time.Second}}
}

type rssDocument struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	Description string   `xml:"description"`
	Encoded     string   `xml:"encoded"`
	PubDate     string   `xml:"pubDate"`
	Creator     string   `xml:"creator"`
	Author      string   `xml:"author"`
	Categories  []string `xml:"category"`
}

// FetchFeedItems returns up to limit entries newer than since. Entries at or
// before the cursor are skipped so repeated runs do not re-ingest.
func (r *RSSClient) FetchFeedItems(ctx context.Context, feed domain.Feed, since *time.Time, limit int) ([]domain.InboxRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "content-agent/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feed.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s: server returned %s", feed.URL, resp.Status)
	}

	var doc rssDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.URL, err)
	}

	feedTitle := feed.Title
	if feedTitle == "" {
		feedTitle = doc.Channel.Title
	}

	now := time.Now().UTC()
	records := make([]domain.InboxRecord, 0, limit)
	for _, item := range doc.Channel.Items {
		originalID := item.GUID
		if originalID == "" {
			originalID = item.Link
		}
		if originalID == "" {
			continue
		}

		publishedAt := parsePubDate(item.PubDate, now)
		if since != nil && !publishedAt.After(*since) {
			continue
		}

		raw := item.Encoded
		if raw == "" {
			raw = item.Description
		}
		content := stripHTML(raw)
		if content == "" {
			content = item.Title
		}

		author := item.Creator
		if author == "" {
			author = item.Author
		}
		if author == "" {
			author = feedTitle
		}

		excerpt := stripHTML(item.Description)
		if len(excerpt) > excerptLimit {
			excerpt = excerpt[:excerptLimit]
		}

		records = append(records, domain.InboxRecord{
			ID:          domain.NewRecordID(),
			Source:      domain.SourceRSS,
			OriginalID:  originalID,
			AuthorID:    feed.ID,
			AuthorName:  author,
			Title:       item.Title,
			Content:     content,
			URL:         item.Link,
			PublishedAt: publishedAt,
			FetchedAt:   now,
			FeedID:      feed.ID,
			FeedTitle:   feedTitle,
			Categories:  item.Categories,
			Excerpt:     excerpt,
		})

		if len(records) >= limit {
			break
		}
	}

	return records, nil
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

func parsePubDate(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range pubDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC()
		}
	}
	return fallback
}

// stripHTML flattens markup into plain text. Unparseable input is returned
// trimmed as-is.
func stripHTML(raw string) string {
	if raw == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " "))
}
