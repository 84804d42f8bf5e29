package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"contentagent/internal/config"
	"contentagent/internal/domain"
)

type fakeMetricSource struct {
	stats    []domain.MetricStat
	username string
	userID   string
}

func (f *fakeMetricSource) FetchUserMetrics(ctx context.Context, username, userID string, count int) ([]domain.MetricStat, error) {
	f.username = username
	f.userID = userID
	return f.stats, nil
}

func snapshot(contentID string, engagements, impressions int, at time.Time) domain.MetricStat {
	return domain.MetricStat{
		ID:          uuid.NewString(),
		Platform:    "x",
		ContentType: "post",
		ContentID:   contentID,
		Engagements: engagements,
		Impressions: impressions,
		RecordedAt:  at,
	}
}

func TestMetricsWorkflowAppendsAndComputesDeltas(t *testing.T) {
	t.Parallel()

	store := newIssueStore(t)
	earlier := time.Date(2026, 8, 23, 8, 0, 0, 0, time.UTC)
	if err := store.AppendMetrics([]domain.MetricStat{
		snapshot("p1", 10, 100, earlier),
		snapshot("p1", 15, 150, earlier.Add(time.Hour)), // latest for p1
	}); err != nil {
		t.Fatalf("AppendMetrics: %v", err)
	}

	now := time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC)
	source := &fakeMetricSource{stats: []domain.MetricStat{
		snapshot("p1", 25, 300, now), // delta vs latest: +10 / +150
		snapshot("p2", 5, 50, now),   // unseen post counts in full
	}}

	w := NewMetricsWorkflow(config.MetricsConfig{Username: "alice", Count: 20}, source, store, testLogger())
	result := Run(context.Background(), w, testLogger())

	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if source.username != "alice" {
		t.Fatalf("got username %q, want alice", source.username)
	}
	if result.Metadata["engagement_delta"] != 15 {
		t.Fatalf("got engagement delta %v, want 15", result.Metadata["engagement_delta"])
	}
	if result.Metadata["impression_delta"] != 200 {
		t.Fatalf("got impression delta %v, want 200", result.Metadata["impression_delta"])
	}

	history, err := store.ReadMetrics()
	if err != nil {
		t.Fatalf("ReadMetrics: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("got %d snapshots, want history appended to 4", len(history))
	}
}

func TestMetricsWorkflowRequiresUsername(t *testing.T) {
	t.Parallel()

	w := NewMetricsWorkflow(config.MetricsConfig{}, &fakeMetricSource{}, newIssueStore(t), testLogger())

	if err := w.ValidatePrerequisites(context.Background()); err == nil {
		t.Fatal("expected a prerequisite error without a username")
	}
}

func TestMetricsWorkflowNoPosts(t *testing.T) {
	t.Parallel()

	w := NewMetricsWorkflow(config.MetricsConfig{Username: "alice"}, &fakeMetricSource{}, newIssueStore(t), testLogger())
	result := Run(context.Background(), w, testLogger())

	if !result.Success || result.ItemsProcessed != 0 {
		t.Fatalf("got %+v, want an empty success", result)
	}
}
