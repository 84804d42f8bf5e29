package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"contentagent/internal/config"
	"contentagent/internal/domain"
	"contentagent/internal/ports"
	"contentagent/internal/storage"
)

// MetricsWorkflow snapshots engagement counters for the tracked account's
// recent posts and appends them to the metric history, logging the delta
// against the previous snapshot per post.
type MetricsWorkflow struct {
	cfg    config.MetricsConfig
	source ports.MetricSource
	store  *storage.Manager
	logger *slog.Logger
}

// NewMetricsWorkflow wires the metrics pipeline.
func NewMetricsWorkflow(cfg config.MetricsConfig, source ports.MetricSource, store *storage.Manager, logger *slog.Logger) *MetricsWorkflow {
	return &MetricsWorkflow{cfg: cfg, source: source, store: store, logger: logger}
}

func (w *MetricsWorkflow) Name() string { return "metrics" }

func (w *MetricsWorkflow) ValidatePrerequisites(ctx context.Context) error {
	if w.cfg.Username == "" {
		return fmt.Errorf("metrics username is not configured")
	}
	return nil
}

// Execute fetches fresh snapshots and appends them to the history. The
// history is append-only; deltas are derived, never stored.
func (w *MetricsWorkflow) Execute(ctx context.Context) domain.WorkflowResult {
	stats, err := w.source.FetchUserMetrics(ctx, w.cfg.Username, w.cfg.UserID, w.cfg.Count)
	if err != nil {
		return domain.FailedResult(fmt.Sprintf("fetch metrics for @%s: %v", w.cfg.Username, err))
	}
	if len(stats) == 0 {
		w.logger.Info("no posts to snapshot", "username", w.cfg.Username)
		return domain.OKResult(0)
	}

	history, err := w.store.ReadMetrics()
	if err != nil {
		return domain.FailedResult(fmt.Sprintf("read metric history: %v", err))
	}

	latest := make(map[string]domain.MetricStat, len(history))
	for _, s := range history {
		prev, ok := latest[s.ContentID]
		if !ok || s.RecordedAt.After(prev.RecordedAt) {
			latest[s.ContentID] = s
		}
	}

	engagementDelta := 0
	impressionDelta := 0
	for _, s := range stats {
		prev, ok := latest[s.ContentID]
		if !ok {
			engagementDelta += s.Engagements
			impressionDelta += s.Impressions
			continue
		}
		engagementDelta += s.Engagements - prev.Engagements
		impressionDelta += s.Impressions - prev.Impressions
		w.logger.Debug("post delta",
			"content_id", s.ContentID,
			"engagements", s.Engagements-prev.Engagements,
			"impressions", s.Impressions-prev.Impressions)
	}

	if err := w.store.AppendMetrics(stats); err != nil {
		return domain.FailedResult(fmt.Sprintf("append metric snapshots: %v", err))
	}

	w.logger.Info("metrics snapshot recorded",
		"username", w.cfg.Username,
		"posts", len(stats),
		"engagement_delta", engagementDelta,
		"impression_delta", impressionDelta)

	res := domain.OKResult(len(stats))
	res.Metadata["engagement_delta"] = engagementDelta
	res.Metadata["impression_delta"] = impressionDelta
	return res
}

func (w *MetricsWorkflow) Cleanup(ctx context.Context) {}
