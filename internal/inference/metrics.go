package inference

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// inferenceRequests counts non-streamed inference calls.
	// Labels: model, outcome (success, failure)
	inferenceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sidekick",
		Subsystem: "inference",
		Name:      "requests_total",
		Help:      "Total non-streamed inference calls by outcome",
	}, []string{"model", "outcome"})

	// inferenceFailures counts failed calls by category.
	// Labels: model, category (timeout, rate_limit, other)
	inferenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sidekick",
		Subsystem: "inference",
		Name:      "failures_total",
		Help:      "Total failed inference calls by category",
	}, []string{"model", "category"})

	// inferenceLatency measures call duration.
	// Labels: model, outcome
	inferenceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sidekick",
		Subsystem: "inference",
		Name:      "latency_seconds",
		Help:      "Non-streamed inference call latency in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"model", "outcome"})
)

// Recorder receives the outcome of an inference call. Implementations may
// fail or panic; Call isolates them.
type Recorder interface {
	RecordSuccess(model string, d time.Duration)
	RecordFailure(model string, category Category, d time.Duration, err error)
}

// PrometheusRecorder records into the package's Prometheus collectors.
type PrometheusRecorder struct{}

func (PrometheusRecorder) RecordSuccess(model string, d time.Duration) {
	inferenceRequests.WithLabelValues(model, "success").Inc()
	inferenceLatency.WithLabelValues(model, "success").Observe(d.Seconds())
}

func (PrometheusRecorder) RecordFailure(model string, category Category, d time.Duration, _ error) {
	inferenceRequests.WithLabelValues(model, "failure").Inc()
	inferenceFailures.WithLabelValues(model, string(category)).Inc()
	inferenceLatency.WithLabelValues(model, "failure").Observe(d.Seconds())
}

// Recorders fans out to several recorders, isolating each one.
type Recorders []Recorder

func (rs Recorders) RecordSuccess(model string, d time.Duration) {
	for _, r := range rs {
		safely(func() { r.RecordSuccess(model, d) })
	}
}

func (rs Recorders) RecordFailure(model string, category Category, d time.Duration, err error) {
	for _, r := range rs {
		safely(func() { r.RecordFailure(model, category, d, err) })
	}
}
