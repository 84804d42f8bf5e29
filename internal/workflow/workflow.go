// Package workflow defines the run lifecycle shared by every pipeline and
// the concrete content, issue-sync, and metrics pipelines.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"contentagent/internal/domain"
)

// Workflow is one runnable pipeline. Execute is only called after
// ValidatePrerequisites succeeds; Cleanup runs after Execute regardless of
// outcome, including panics.
type Workflow interface {
	Name() string
	ValidatePrerequisites(ctx context.Context) error
	Execute(ctx context.Context) domain.WorkflowResult
	Cleanup(ctx context.Context)
}

// Run drives a workflow through its lifecycle. A prerequisite failure aborts
// before execution and before cleanup. A panic inside Execute is converted
// into a failure result, and a panic inside Cleanup is logged without
// touching the already-decided result; neither crosses this boundary.
func Run(ctx context.Context, w Workflow, logger *slog.Logger) (result domain.WorkflowResult) {
	logger.Info("workflow starting", "workflow", w.Name())

	if err := w.ValidatePrerequisites(ctx); err != nil {
		logger.Error("prerequisites not met", "workflow", w.Name(), "error", err)
		return domain.FailedResult(fmt.Sprintf("prerequisites not met: %v", err))
	}

	defer func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("cleanup panicked", "workflow", w.Name(), "panic", r)
			}
		}()
		w.Cleanup(ctx)
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workflow panicked", "workflow", w.Name(), "panic", r)
			result = domain.FailedResult(fmt.Sprintf("workflow panicked: %v", r))
		}
	}()

	result = w.Execute(ctx)

	if result.Success {
		logger.Info("workflow finished", "workflow", w.Name(), "items", result.ItemsProcessed)
	} else {
		logger.Error("workflow failed", "workflow", w.Name(), "errors", result.Errors)
	}
	return result
}

// Registry maps workflow names to instances for CLI and scheduler lookup.
type Registry struct {
	workflows map[string]Workflow
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{workflows: map[string]Workflow{}}
}

// Register adds a workflow under its name, replacing any previous entry.
func (r *Registry) Register(w Workflow) {
	r.workflows[w.Name()] = w
}

// Get returns the named workflow.
func (r *Registry) Get(name string) (Workflow, error) {
	w, ok := r.workflows[name]
	if !ok {
		return nil, fmt.Errorf("unknown workflow %q (available: %v)", name, r.Names())
	}
	return w, nil
}

// Names returns the registered workflow names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.workflows))
	for name := range r.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
