// Package app wires configuration to storage, collaborators, and workflows.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"contentagent/internal/config"
	"contentagent/internal/curate"
	"contentagent/internal/domain"
	"contentagent/internal/generate"
	"contentagent/internal/index"
	"contentagent/internal/ingest"
	"contentagent/internal/llm"
	"contentagent/internal/logging"
	"contentagent/internal/ports"
	"contentagent/internal/scheduler"
	"contentagent/internal/storage"
	"contentagent/internal/workflow"
)

// Application owns the wired component graph for one process.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.Manager
	cache    *index.Cache
	registry *workflow.Registry
}

// New builds a runnable application instance. A cache that fails to open is
// logged and dropped; the durable store carries every read on its own.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	client := llm.New(cfg.LLM, cfg.Retry)

	var cache *index.Cache
	var cachePort ports.Cache
	if cfg.Cache.Enabled {
		opened, err := index.Open(cfg.CacheDir(), client, logging.Component(baseLogger, "cache"))
		if err != nil {
			baseLogger.Warn("cache unavailable, continuing without it", "dir", cfg.CacheDir(), "error", err)
		} else {
			cache = opened
			cachePort = opened
		}
	}

	store, err := storage.NewManager(cfg.DataRoot, cachePort, logging.Component(baseLogger, "storage"))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	curator := curate.New(client, logging.Component(baseLogger, "curator"))
	blogGen := generate.New(client, logging.Component(baseLogger, "generator"))

	registry := workflow.NewRegistry()
	registry.Register(workflow.NewContentWorkflow(
		cfg, store, cachePort,
		ingest.NewXClient(cfg.XAPI),
		ingest.NewRSSClient(),
		curator, blogGen,
		logging.Component(baseLogger, "workflow.content"),
	))
	registry.Register(workflow.NewIssueSyncWorkflow(
		cfg.GitHub,
		ingest.NewGitHubClient(cfg.GitHub.Token),
		store,
		logging.Component(baseLogger, "workflow.issue-sync"),
	))
	registry.Register(workflow.NewMetricsWorkflow(
		cfg.Metrics,
		ingest.NewXMetricsClient(cfg.XAPI),
		store,
		logging.Component(baseLogger, "workflow.metrics"),
	))

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		cache:    cache,
		registry: registry,
	}, nil
}

// Init creates the data directory layout.
func (a *Application) Init() error {
	if err := a.store.InitLayout(); err != nil {
		return err
	}
	a.logger.Info("data layout initialized", "root", a.store.Root())
	return nil
}

// Workflows lists the registered workflow names.
func (a *Application) Workflows() []string {
	return a.registry.Names()
}

// RunWorkflow executes the named workflow through its lifecycle.
func (a *Application) RunWorkflow(ctx context.Context, name string) (domain.WorkflowResult, error) {
	w, err := a.registry.Get(name)
	if err != nil {
		return domain.WorkflowResult{}, err
	}
	return workflow.Run(ctx, w, a.logger), nil
}

// Schedule runs the content workflow on the configured cron schedule until
// ctx is canceled.
func (a *Application) Schedule(ctx context.Context) error {
	w, err := a.registry.Get("content")
	if err != nil {
		return err
	}
	return scheduler.New(a.cfg.Scheduler, w, logging.Component(a.logger, "scheduler")).Start(ctx)
}

// Search queries the index cache. mode is "semantic", "keyword", or "hybrid".
func (a *Application) Search(ctx context.Context, query, mode string, topK int) ([]index.SearchResult, error) {
	if a.cache == nil {
		return nil, fmt.Errorf("index cache is disabled or unavailable")
	}
	if topK <= 0 {
		topK = a.cfg.Curation.TopK
	}

	switch mode {
	case "semantic":
		return a.cache.SearchSimilar(ctx, query, topK, nil)
	case "keyword":
		return a.cache.SearchKeyword(ctx, query, topK)
	case "hybrid", "":
		return a.cache.SearchHybrid(ctx, query, topK, 0.5)
	default:
		return nil, fmt.Errorf("unknown search mode %q (semantic, keyword, hybrid)", mode)
	}
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}
