// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	JobsDispatched prometheus.Counter
	JobsCompleted  prometheus.Counter
	JobsFailed     prometheus.Counter
	JobDuration    prometheus.Histogram
}

// New registers the pipeline collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "lep_inference_jobs_dispatched_total",
			Help: "Inference jobs enqueued by Confirm.",
		}),
		JobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lep_inference_jobs_completed_total",
			Help: "Inference jobs that persisted a detection result.",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lep_inference_jobs_failed_total",
			Help: "Inference jobs that ended with a captured error.",
		}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lep_inference_job_duration_seconds",
			Help:    "Wall time of one inference job.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}
