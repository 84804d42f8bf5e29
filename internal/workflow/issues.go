package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"contentagent/internal/config"
	"contentagent/internal/domain"
	"contentagent/internal/ports"
	"contentagent/internal/storage"
)

const issueFetchLimit = 200

// IssueSyncWorkflow mirrors a repository's issues into local storage so the
// content pipeline's data root carries the project backlog alongside it.
type IssueSyncWorkflow struct {
	cfg    config.GitHubConfig
	source ports.IssueSource
	store  *storage.Manager
	logger *slog.Logger
}

// NewIssueSyncWorkflow wires the issue-sync pipeline.
func NewIssueSyncWorkflow(cfg config.GitHubConfig, source ports.IssueSource, store *storage.Manager, logger *slog.Logger) *IssueSyncWorkflow {
	return &IssueSyncWorkflow{cfg: cfg, source: source, store: store, logger: logger}
}

func (w *IssueSyncWorkflow) Name() string { return "issue-sync" }

func (w *IssueSyncWorkflow) ValidatePrerequisites(ctx context.Context) error {
	if w.cfg.Repo == "" {
		return fmt.Errorf("GITHUB_REPO is not set")
	}
	return nil
}

// Execute fetches the repository's issues and merges them into the stored
// mirror. For an issue present on both sides, the newer updated_at wins.
func (w *IssueSyncWorkflow) Execute(ctx context.Context) domain.WorkflowResult {
	fetched, err := w.source.FetchIssues(ctx, w.cfg.Repo, "all", issueFetchLimit)
	if err != nil {
		return domain.FailedResult(fmt.Sprintf("fetch issues for %s: %v", w.cfg.Repo, err))
	}

	stored, err := w.store.ReadIssues()
	if err != nil {
		return domain.FailedResult(fmt.Sprintf("read stored issues: %v", err))
	}

	merged := make(map[int]domain.Issue, len(stored)+len(fetched))
	for _, issue := range stored {
		merged[issue.Number] = issue
	}
	updated := 0
	for _, issue := range fetched {
		prev, ok := merged[issue.Number]
		if ok && !issue.UpdatedAt.After(prev.UpdatedAt) {
			continue
		}
		merged[issue.Number] = issue
		updated++
	}

	out := make([]domain.Issue, 0, len(merged))
	for _, issue := range merged {
		out = append(out, issue)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })

	if err := w.store.WriteIssues(out); err != nil {
		return domain.FailedResult(fmt.Sprintf("write issue mirror: %v", err))
	}

	w.logger.Info("issue mirror synced", "repo", w.cfg.Repo, "fetched", len(fetched), "updated", updated, "total", len(out))

	res := domain.OKResult(updated)
	res.Metadata["repo"] = w.cfg.Repo
	res.Metadata["fetched"] = len(fetched)
	res.Metadata["total"] = len(out)
	return res
}

func (w *IssueSyncWorkflow) Cleanup(ctx context.Context) {}
