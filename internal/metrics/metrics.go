// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Parser metrics
	DocumentsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docparse_documents_parsed_total",
			Help: "Documents parsed, by review outcome",
		},
		[]string{"needs_review"},
	)

	FallbackRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docparse_fallback_runs_total",
		Help: "Times the regex fallback extractor ran",
	})

	ParseStepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docparse_parse_step_failures_total",
			Help: "Parser steps that failed and degraded to empty output",
		},
		[]string{"step"},
	)

	// Pipeline metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docparse_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	ClassificationLabels = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docparse_classification_labels_total",
			Help: "Classification verdicts by label",
		},
		[]string{"label"},
	)

	// Batch metrics
	BatchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docparse_batch_in_flight",
		Help: "Batch documents currently being processed",
	})

	BatchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docparse_batch_retries_total",
		Help: "Retried batch document attempts",
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docparse_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docparse_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// ObserveStage records how long stage took since start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
