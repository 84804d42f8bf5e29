// Package ingest holds the thin source adapters that hand raw records to
// the pipeline. Each adapter expects exactly one response schema from its
// gateway and fails fast on mismatch.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"contentagent/internal/config"
	"contentagent/internal/domain"
	"contentagent/internal/ports"
)

// XClient fetches creator timelines through a RapidAPI-style gateway.
type XClient struct {
	host   string
	key    string
	client *http.Client
}

var _ ports.CreatorSource = (*XClient)(nil)

// NewXClient builds the adapter from configuration.
func NewXClient(cfg config.XAPIConfig) *XClient {
	return &XClient{
		host:   cfg.Host,
		key:    cfg.Key,
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

// userTweetsResponse is the single expected response schema for the
// timeline endpoint.
type userTweetsResponse struct {
	Tweets []struct {
		ID            string   `json:"id"`
		Text          string   `json:"text"`
		CreatedAt     string   `json:"created_at"`
		ReplyCount    int      `json:"reply_count"`
		RetweetCount  int      `json:"retweet_count"`
		FavoriteCount int      `json:"favorite_count"`
		QuoteCount    int      `json:"quote_count"`
		ViewCount     int      `json:"view_count"`
		Media         []string `json:"media"`
		Hashtags      []string `json:"hashtags"`
	} `json:"tweets"`
}

// FetchCreatorPosts returns up to limit recent posts for the creator.
func (x *XClient) FetchCreatorPosts(ctx context.Context, creator domain.Creator, limit int) ([]domain.InboxRecord, error) {
	endpoint := url.URL{
		Scheme: "https",
		Host:   x.host,
		Path:   "/user-tweets",
		RawQuery: url.Values{
			"user":  {creator.ID},
			"count": {strconv.Itoa(limit)},
		}.Encode(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", x.key)
	req.Header.Set("X-RapidAPI-Host", x.host)

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch timeline for @%s: %w", creator.Username, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timeline for @%s: gateway returned %s", creator.Username, resp.Status)
	}

	var payload userTweetsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode timeline for @%s: %w", creator.Username, err)
	}

	now := time.Now().UTC()
	records := make([]domain.InboxRecord, 0, len(payload.Tweets))
	for _, t := range payload.Tweets {
		if t.ID == "" || t.Text == "" {
			continue
		}

		publishedAt := now
		if parsed, err := time.Parse(time.RubyDate, t.CreatedAt); err == nil {
			publishedAt = parsed.UTC()
		} else if parsed, err := time.Parse(time.RFC3339, t.CreatedAt); err == nil {
			publishedAt = parsed.UTC()
		}

		records = append(records, domain.InboxRecord{
			ID:           domain.NewRecordID(),
			Source:       domain.SourceX,
			OriginalID:   t.ID,
			AuthorID:     creator.ID,
			AuthorName:   creator.Username,
			Username:     creator.Username,
			Content:      t.Text,
			URL:          fmt.Sprintf("https://x.com/%s/status/%s", creator.Username, t.ID),
			PublishedAt:  publishedAt,
			FetchedAt:    now,
			ReplyCount:   t.ReplyCount,
			RetweetCount: t.RetweetCount,
			LikeCount:    t.FavoriteCount,
			QuoteCount:   t.QuoteCount,
			ViewCount:    t.ViewCount,
			Media:        t.Media,
			Hashtags:     t.Hashtags,
		})

		if len(records) >= limit {
			break
		}
	}

	return records, nil
}
