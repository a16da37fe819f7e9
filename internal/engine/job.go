// Package engine drives the coarse-to-fine string-art optimization
// (spec components C10–C14): stage driver, local refinement, optional
// annealing/genetic passes, result assembly, and continue-from-result.
// One Job owns one internal/state.State exclusively for its lifetime,
// mirroring the teacher's single-goroutine ws.Hub event loop rather than
// a lock-guarded shared structure.
package engine

import (
	"context"

	"github.com/your-org/stringart/pkg/dto"
)

// ResultOrError is what a Job's Result channel resolves to exactly once:
// either a completed dto.Result, or an error (ErrCancelled on
// cancellation, never a plain error from mid-run numerical degeneracy,
// which spec.md §7 category 5 requires the driver to route around
// instead of failing the job).
type ResultOrError struct {
	Result *dto.Result
	Err    error
}

// Job is the handle returned by Generate/Continue. Progress/Result may
// each be read from any goroutine; Cancel may be called at most once
// usefully (subsequent calls are no-ops).
type Job struct {
	progress chan dto.ProgressSnapshot
	result   chan ResultOrError
	cancel   context.CancelFunc
}

// Progress returns the channel of progress snapshots. It is closed when
// the job finishes (successfully, cancelled, or failed validation never
// reaches here — validation failures are returned synchronously from
// Generate/Continue instead).
func (j *Job) Progress() <-chan dto.ProgressSnapshot { return j.progress }

// Result returns the channel that resolves exactly once with the job's
// final outcome.
func (j *Job) Result() <-chan ResultOrError { return j.result }

// Cancel requests cooperative cancellation. The driver observes this at
// its next suspension point between threads (spec.md §5) and exits
// cleanly, handing whatever connections exist to the result assembler
// unless ReturnPartialOnCancel is false, in which case Result resolves to
// ErrCancelled and no partial data is returned.
func (j *Job) Cancel() { j.cancel() }

// Generate implements spec.md §6's `generate` operation: validate
// params, then run the full pipeline (C1 → C4 once, C10-driven main
// loop, C11-C13) in a background goroutine.
func Generate(ctx context.Context, imageBytes []byte, params dto.GenerationParams) (*Job, error) {
	params = applyDefaults(params)
	if err := validate(params); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	j := &Job{
		progress: make(chan dto.ProgressSnapshot, 16),
		result:   make(chan ResultOrError, 1),
		cancel:   cancel,
	}

	go runGenerate(runCtx, imageBytes, params, j)
	return j, nil
}

// Continue implements spec.md §4.14 / §6's `continue_generation`:
// replay a previous Result's connections onto fresh state, then run one
// greedy pass for additionalThreads more threads.
func Continue(ctx context.Context, previous dto.Result, additionalThreads int, target dto.ContinueTarget) (*Job, error) {
	params := previous.Params
	if additionalThreads < 1 {
		return nil, &ValidationError{Field: "additional_threads", Message: "must be at least 1"}
	}

	runCtx, cancel := context.WithCancel(ctx)
	j := &Job{
		progress: make(chan dto.ProgressSnapshot, 16),
		result:   make(chan ResultOrError, 1),
		cancel:   cancel,
	}

	go runContinue(runCtx, previous, additionalThreads, target, params, j)
	return j, nil
}
