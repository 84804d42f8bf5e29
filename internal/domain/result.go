package domain

// WorkflowResult is the uniform outcome of every stage and workflow run.
// It is always returned, never panicked across a boundary.
type WorkflowResult struct {
	Success        bool           `json:"success"`
	ItemsProcessed int            `json:"items_processed"`
	Errors         []string       `json:"errors,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// FailedResult builds a failure result from the given error messages.
func FailedResult(errs ...string) WorkflowResult {
	return WorkflowResult{Success: false, Errors: errs, Metadata: map[string]any{}}
}

// OKResult builds a success result for the given item count.
func OKResult(items int) WorkflowResult {
	return WorkflowResult{Success: true, ItemsProcessed: items, Metadata: map[string]any{}}
}
