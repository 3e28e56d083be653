// Package metrics registers the application's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	FieldEdits         *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	SavesScheduled     prometheus.Counter
	SavesFired         prometheus.Counter
	SaveRetries        prometheus.Counter
	SaveErrors         prometheus.Counter
	FlushDurationMs    prometheus.Histogram
	SummaryCacheHits   prometheus.Counter
	SummaryCacheMisses prometheus.Counter
	RequestLatencyMs   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		FieldEdits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_field_edits_total",
			Help: "Field edit events by origin (user or prefill)",
		}, []string{"origin"}),
		ValidationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_validation_failures_total",
			Help: "Validation outcomes that were not clean passes, by severity",
		}, []string{"severity"}),
		SavesScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_saves_scheduled_total",
			Help: "Debounced save triggers accepted",
		}),
		SavesFired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_saves_fired_total",
			Help: "Save callbacks actually executed",
		}),
		SaveRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_save_retries_total",
			Help: "Automatic save retry attempts",
		}),
		SaveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_save_errors_total",
			Help: "Saves that exhausted retries and entered the error state",
		}),
		FlushDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "entrypass_flush_duration_ms",
			Help:    "Latency of flush operations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
		SummaryCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_summary_cache_hits_total",
			Help: "Completion summaries served from the content-keyed cache",
		}),
		SummaryCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_summary_cache_misses_total",
			Help: "Completion summaries that required recomputation",
		}),
		RequestLatencyMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "entrypass_http_request_duration_ms",
			Help:    "HTTP request latency in milliseconds",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"route", "method", "status"}),
	}
}
