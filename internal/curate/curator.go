// Package curate evaluates inbox records through the external evaluator and
// produces curated records.
package curate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"contentagent/internal/domain"
	"contentagent/internal/ports"
)

// Curator runs the per-record evaluation loop.
type Curator struct {
	evaluator ports.Evaluator
	logger    *slog.Logger
}

// New builds a Curator.
func New(evaluator ports.Evaluator, logger *slog.Logger) *Curator {
	return &Curator{evaluator: evaluator, logger: logger}
}

// EvaluateRecords evaluates each record in turn. A failed evaluation skips
// that record and continues; it never aborts the batch.
func (c *Curator) EvaluateRecords(ctx context.Context, items []domain.InboxRecord) []domain.CuratedRecord {
	curated := make([]domain.CuratedRecord, 0, len(items))

	for _, item := range items {
		eval, err := c.evaluator.Evaluate(ctx, item.Content, item.AuthorName, item.Source)
		if err != nil {
			c.logger.Warn("evaluation failed, skipping record", "id", item.ID, "error", err)
			continue
		}

		curated = append(curated, domain.CuratedRecord{
			ID:          uuid.NewString(),
			SourceID:    item.ID,
			Score:       eval.Score,
			Summary:     eval.Summary,
			Comment:     eval.Comment,
			CuratedAt:   time.Now().UTC(),
			URL:         item.URL,
			AuthorName:  item.AuthorName,
			Title:       item.Title,
			Content:     item.Content,
			PublishedAt: item.PublishedAt,
			Source:      item.Source,
		})

		c.logger.Debug("evaluated record", "id", item.ID, "score", eval.Score)
	}

	c.logger.Info("evaluation complete", "evaluated", len(curated), "total", len(items))
	return curated
}
