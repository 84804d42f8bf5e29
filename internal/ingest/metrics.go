package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"contentagent/internal/config"
	"contentagent/internal/domain"
	"contentagent/internal/ports"
)

// XMetricsClient fetches engagement counters for an account's recent posts
// through the same gateway as XClient.
type XMetricsClient struct {
	host   string
	key    string
	client *http.Client
}

var _ ports.MetricSource = (*XMetricsClient)(nil)

// NewXMetricsClient builds the adapter from configuration.
func NewXMetricsClient(cfg config.XAPIConfig) *XMetricsClient {
	return &XMetricsClient{
		host:   cfg.Host,
		key:    cfg.Key,
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

type userLookupResponse struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
}

// FetchUserMetrics returns one snapshot per recent post. When userID is empty
// it is resolved from the username first.
func (m *XMetricsClient) FetchUserMetrics(ctx context.Context, username, userID string, count int) ([]domain.MetricStat, error) {
	if userID == "" {
		resolved, err := m.lookupUserID(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("resolve user id for @%s: %w", username, err)
		}
		userID = resolved
	}

	var payload userTweetsResponse
	query := url.Values{"user": {userID}, "count": {strconv.Itoa(count)}}
	if err := m.get(ctx, "/user-tweets", query, &payload); err != nil {
		return nil, fmt.Errorf("fetch metrics for @%s: %w", username, err)
	}

	now := time.Now().UTC()
	stats := make([]domain.MetricStat, 0, len(payload.Tweets))
	for _, t := range payload.Tweets {
		if t.ID == "" {
			continue
		}

		stats = append(stats, domain.MetricStat{
			ID:          uuid.NewString(),
			Platform:    "x",
			ContentType: "post",
			ContentID:   t.ID,
			URL:         fmt.Sprintf("https://x.com/%s/status/%s", username, t.ID),
			Impressions: t.ViewCount,
			Engagements: t.ReplyCount + t.RetweetCount + t.FavoriteCount + t.QuoteCount,
			Likes:       t.FavoriteCount,
			Retweets:    t.RetweetCount,
			Replies:     t.ReplyCount,
			RecordedAt:  now,
		})

		if len(stats) >= count {
			break
		}
	}

	return stats, nil
}

func (m *XMetricsClient) lookupUserID(ctx context.Context, username string) (string, error) {
	var payload userLookupResponse
	if err := m.get(ctx, "/user", url.Values{"username": {username}}, &payload); err != nil {
		return "", err
	}
	if payload.User.ID == "" {
		return "", fmt.Errorf("user @%s not found", username)
	}
	return payload.User.ID, nil
}

func (m *XMetricsClient) get(ctx context.Context, path string, query url.Values, v any) error {
	endpoint := url.URL{Scheme: "https", Host: m.host, Path: path, RawQuery: query.Encode()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", m.key)
	req.Header.Set("X-RapidAPI-Host", m.host)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
