package domain

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies the platform a record was ingested from.
type Source string

const (
	SourceX   Source = "x"
	SourceRSS Source = "rss"
)

// NaturalKey identifies a piece of content independent of system IDs.
// AuthorID is part of the key so the same content surfaced through
// different accounts (retweets) counts as distinct.
type NaturalKey struct {
	Source     Source
	OriginalID string
	AuthorID   string
}

// InboxRecord is a fetched content item awaiting curation. The Source field
// discriminates the variant: X records carry engagement fields, RSS records
// carry feed fields. Records are immutable once fetched.
type InboxRecord struct {
	ID          string         `json:"id"`
	Source      Source         `json:"source"`
	OriginalID  string         `json:"original_id"`
	AuthorID    string         `json:"author_id"`
	AuthorName  string         `json:"author_name"`
	Title       string         `json:"title,omitempty"`
	Content     string         `json:"content"`
	URL         string         `json:"url"`
	PublishedAt time.Time      `json:"published_at"`
	FetchedAt   time.Time      `json:"fetched_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	// X variant fields.
	Username     string   `json:"username,omitempty"`
	ReplyCount   int      `json:"reply_count,omitempty"`
	RetweetCount int      `json:"retweet_count,omitempty"`
	LikeCount    int      `json:"like_count,omitempty"`
	QuoteCount   int      `json:"quote_count,omitempty"`
	ViewCount    int      `json:"view_count,omitempty"`
	Media        []string `json:"media,omitempty"`
	Hashtags     []string `json:"hashtags,omitempty"`

	// RSS variant fields.
	FeedID     string   `json:"feed_id,omitempty"`
	FeedTitle  string   `json:"feed_title,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Excerpt    string   `json:"excerpt,omitempty"`
}

// Key returns the record's natural key.
func (r InboxRecord) Key() NaturalKey {
	return NaturalKey{Source: r.Source, OriginalID: r.OriginalID, AuthorID: r.AuthorID}
}

// NewRecordID returns a fresh system-assigned record identifier.
func NewRecordID() string {
	return uuid.NewString()
}

// CuratedRecord is an inbox record after evaluation: a 0-100 score, a
// generated summary and comment, and a rank assigned by the ranker.
// SourceID is a weak back-reference to the originating inbox record.
type CuratedRecord struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	Score     int       `json:"score"`
	Summary   string    `json:"summary"`
	Comment   string    `json:"comment"`
	Rank      int       `json:"rank,omitempty"`
	CuratedAt time.Time `json:"curated_at"`

	// Content fields preserved from the inbox record.
	URL         string    `json:"url"`
	AuthorName  string    `json:"author_name"`
	Title       string    `json:"title,omitempty"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"published_at"`
	Source      Source    `json:"source"`
}

// Creator is an X account subscription. LastFetchedAt is the ingestion
// cursor, advanced only after a successful fetch for this creator.
type Creator struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	FollowerCount int        `json:"followers_count"`
	SubscribedAt  time.Time  `json:"subscribed_at"`
	LastFetchedAt *time.Time `json:"last_fetched_at"`
}

// Feed is an RSS feed subscription.
type Feed struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Category      string     `json:"category,omitempty"`
	Language      string     `json:"language,omitempty"`
	SubscribedAt  time.Time  `json:"subscribed_at"`
	LastFetchedAt *time.Time `json:"last_fetched_at"`
	Status        string     `json:"status"`
}

// BlogHeader is the structured header block of a generated blog artifact.
type BlogHeader struct {
	Title   string    `yaml:"title"`
	Date    time.Time `yaml:"date"`
	Summary string    `yaml:"summary"`
	Tags    []string  `yaml:"tags"`
	Author  string    `yaml:"author"`
}

// BlogPost is a generated artifact: header, markdown body, and the curated
// record IDs it was built from.
type BlogPost struct {
	ID          string
	Slug        string
	Header      BlogHeader
	Content     string
	SourceItems []string
	GeneratedAt time.Time
}

// Issue mirrors a GitHub issue for the issue-sync workflow.
type Issue struct {
	Number    int        `json:"id"`
	NodeID    string     `json:"node_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"`
	Author    string     `json:"author"`
	Labels    []string   `json:"labels"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	URL       string     `json:"url"`
}

// MetricStat is one engagement snapshot for a published post.
type MetricStat struct {
	ID          string    `json:"id"`
	Platform    string    `json:"platform"`
	ContentType string    `json:"content_type"`
	ContentID   string    `json:"content_id"`
	URL         string    `json:"url"`
	Impressions int       `json:"impressions"`
	Engagements int       `json:"engagements"`
	Likes       int       `json:"likes"`
	Retweets    int       `json:"retweets"`
	Replies     int       `json:"replies"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Evaluation is the external evaluator's verdict on one record.
type Evaluation struct {
	Score   int    `json:"score"`
	Summary string `json:"summary"`
	Comment string `json:"comment"`
}
