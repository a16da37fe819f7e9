// Package observability wires up structured logging and Prometheus
// metrics for the string-art generation engine, following the teacher's
// log/slog-plus-prometheus/client_golang idiom (cmd/*/main.go call
// observability.SetupLogger before anything else runs).
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ThreadsPlaced counts successfully placed thread connections, labeled
	// by quality preset (fast/balanced/high).
	ThreadsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stringart",
		Name:      "threads_placed_total",
		Help:      "Total number of thread connections placed",
	}, []string{"preset"})

	// CandidateScoreDuration times one scoreConcurrently fan-out over a
	// candidate pool for a single thread placement.
	CandidateScoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stringart",
		Name:      "candidate_score_duration_seconds",
		Help:      "Duration of scoring a candidate pool for one thread placement",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"stage"})

	// PyramidRefreshDuration times a progress-pyramid rebuild.
	PyramidRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stringart",
		Name:      "pyramid_refresh_duration_seconds",
		Help:      "Duration of rebuilding the progress image pyramid",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
	})

	// RefinementsApplied counts local-refinement swaps that changed a
	// connection's from-pin or to-pin (internal/engine/refine.go).
	RefinementsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stringart",
		Name:      "refinements_applied_total",
		Help:      "Total number of local refinement passes that changed a connection",
	})

	// AnnealAccepted and AnnealRejected count simulated-annealing swap
	// decisions (internal/engine/anneal.go).
	AnnealAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stringart",
		Name:      "anneal_swaps_accepted_total",
		Help:      "Total number of simulated annealing swaps accepted",
	})

	AnnealRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stringart",
		Name:      "anneal_swaps_rejected_total",
		Help:      "Total number of simulated annealing swaps rejected",
	})

	// GenerationDuration times a full Generate/Continue job end to end.
	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stringart",
		Name:      "generation_duration_seconds",
		Help:      "Duration of a full generation job",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"preset", "color_mode"})

	// ActiveJobs tracks in-flight generation jobs (the single-owner,
	// single-job-per-state model still allows several jobs concurrently
	// within one process, one state.State each).
	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stringart",
		Name:      "active_jobs",
		Help:      "Number of generation jobs currently running",
	})
)
