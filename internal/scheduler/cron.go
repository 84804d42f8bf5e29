// Package scheduler runs the content workflow on a cron schedule.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"contentagent/internal/config"
	"contentagent/internal/workflow"
)

// Scheduler fires a workflow on a cron expression in the configured
// timezone. Overlapping firings are skipped: if a run is still in progress
// when the next tick arrives, the tick is dropped.
type Scheduler struct {
	cfg    config.SchedulerConfig
	target workflow.Workflow
	logger *slog.Logger

	runMu sync.Mutex
}

// New builds a scheduler for the given workflow.
func New(cfg config.SchedulerConfig, target workflow.Workflow, logger *slog.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, target: target, logger: logger}
}

// Start blocks until ctx is canceled, firing the workflow per the cron
// expression. An in-flight run is allowed to finish before Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.cfg.Location()))

	_, err := c.AddFunc(s.cfg.CronExpression, func() {
		if !s.runMu.TryLock() {
			s.logger.Warn("previous run still in progress, skipping this firing")
			return
		}
		defer s.runMu.Unlock()

		workflow.Run(ctx, s.target, s.logger)
	})
	if err != nil {
		return err
	}

	s.logger.Info("scheduler started",
		"cron", s.cfg.CronExpression,
		"timezone", s.cfg.Location().String(),
		"workflow", s.target.Name())
	c.Start()

	<-ctx.Done()
	s.logger.Info("scheduler stopping")

	// Stop returns a context that completes when running jobs finish.
	<-c.Stop().Done()
	s.runMu.Lock()
	s.runMu.Unlock()

	return nil
}
