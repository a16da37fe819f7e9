package engine

import "fmt"

// ValidationError reports a spec.md §7 category-1 input-validation
// failure: params out of range, surfaced to the caller before any work
// starts.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ErrCancelled is the terminal state a Job's Result resolves to on
// cancellation (spec.md §7 category 4) — a state, not a failure the
// caller needs to recover from.
type ErrCancelled struct{}

func (ErrCancelled) Error() string { return "generation cancelled" }
