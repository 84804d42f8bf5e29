package ports

import (
	"context"
	"time"

	"contentagent/internal/domain"
)

// Evaluator scores a single piece of content. Implementations may fail per
// call; callers decide whether to skip or substitute a neutral default.
type Evaluator interface {
	Evaluate(ctx context.Context, content, author string, source domain.Source) (domain.Evaluation, error)
}

// Generator synthesizes a blog document from a curated shortlist. The
// returned text carries a delimited structured header followed by the body.
type Generator interface {
	GenerateBlog(ctx context.Context, items []domain.CuratedRecord, contextNote string) (string, error)
}

// Embedder turns texts into vectors. Absence of a vector must never prevent
// a record from being stored or indexed.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CreatorSource pulls recent posts for a subscribed X creator.
type CreatorSource interface {
	FetchCreatorPosts(ctx context.Context, creator domain.Creator, limit int) ([]domain.InboxRecord, error)
}

// FeedSource pulls recent entries for a subscribed RSS feed.
type FeedSource interface {
	FetchFeedItems(ctx context.Context, feed domain.Feed, since *time.Time, limit int) ([]domain.InboxRecord, error)
}

// IssueSource lists issues for a repository.
type IssueSource interface {
	FetchIssues(ctx context.Context, repo, state string, limit int) ([]domain.Issue, error)
}

// MetricSource fetches engagement counters for an account's recent posts.
type MetricSource interface {
	FetchUserMetrics(ctx context.Context, username, userID string, count int) ([]domain.MetricStat, error)
}

// CacheStats reports whether the index cache is warm.
type CacheStats struct {
	Rows     int
	Location string
}

// Cache is the optional fast-read mirror of the inbox. It is never
// authoritative: every consumer must tolerate errors and fall back to the
// durable store.
type Cache interface {
	IndexRecords(ctx context.Context, items []domain.InboxRecord) (int, error)
	GetAll(ctx context.Context) ([]domain.InboxRecord, error)
	DeleteByNaturalKeys(ctx context.Context, keys map[domain.NaturalKey]struct{}) (int, error)
	RebuildIndex(ctx context.Context, items []domain.InboxRecord) (int, error)
	Stats(ctx context.Context) (CacheStats, error)
}
