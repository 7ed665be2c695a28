// Package metrics registers the process-wide Prometheus instruments for the
// extraction pipeline and the HTTP boundary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageItems counts items surviving each pipeline stage.
	StageItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aicore",
			Subsystem: "pipeline",
			Name:      "stage_items_total",
			Help:      "Number of items emitted by each pipeline stage",
		},
		[]string{"stage"},
	)

	// ChunksProcessed counts conversation chunks sent through extraction.
	ChunksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aicore",
			Subsystem: "pipeline",
			Name:      "chunks_processed_total",
			Help:      "Number of conversation chunks processed",
		},
		[]string{"status"},
	)

	// ExtractionFailures counts failed model calls per pass.
	ExtractionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aicore",
			Subsystem: "pipeline",
			Name:      "extraction_failures_total",
			Help:      "Number of failed extraction model calls",
		},
		[]string{"pass"},
	)

	// DuplicatesSuppressed counts items dropped by cross-chunk dedup.
	DuplicatesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aicore",
			Subsystem: "pipeline",
			Name:      "duplicates_suppressed_total",
			Help:      "Number of duplicate items removed across chunks",
		},
	)

	// RequestDuration tracks end-to-end processing time per endpoint.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aicore",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "End-to-end request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"endpoint", "status"},
	)

	// DuplicateRequests counts requests rejected because an identical
	// conversation was already in flight.
	DuplicateRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aicore",
			Subsystem: "http",
			Name:      "duplicate_requests_total",
			Help:      "Number of requests rejected as duplicates of an in-flight conversation",
		},
	)

	// EvaluationScore tracks the overall evaluation score distribution.
	EvaluationScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aicore",
			Subsystem: "evaluation",
			Name:      "overall_score",
			Help:      "Distribution of overall evaluation scores",
			Buckets:   []float64{0.2, 0.4, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		},
	)
)
