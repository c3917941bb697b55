// Package telemetry exposes Prometheus instrumentation for the scoring
// pipeline. Registration uses the default registry so embedding applications
// pick the collectors up through their existing /metrics handler.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal counts completed analyzer evaluations by outcome.
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowmetrics",
		Name:      "evaluations_total",
		Help:      "Completed analyzer evaluations by outcome",
	}, []string{"outcome"})

	// EvaluationDuration observes end-to-end evaluation latency.
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "flowmetrics",
		Name:      "evaluation_duration_seconds",
		Help:      "End-to-end evaluation latency",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	// ManipulationAlerts counts assessments by severity bucket.
	ManipulationAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowmetrics",
		Name:      "manipulation_assessments_total",
		Help:      "Manipulation assessments by severity",
	}, []string{"severity"})

	// NeutralFallbacks counts components degraded to the neutral score
	// because their input section was missing or unusable.
	NeutralFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowmetrics",
		Name:      "neutral_fallbacks_total",
		Help:      "Components degraded to neutral by missing or malformed input",
	}, []string{"component"})
)
