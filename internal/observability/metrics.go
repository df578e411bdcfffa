// Package observability holds the service's Prometheus metrics and
// OpenTelemetry tracing setup.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "dsacoach"

// Metrics groups the collectors recorded by the harness and the provider client.
//
// Labels:
//   - EvaluationsTotal: outcome (success, assertion_failure, execution_error),
//     kind (empty or the execution error kind)
//   - ProviderRequestsTotal: operation (generate_question, review_solution, ...),
//     status (success, error)
type Metrics struct {
	EvaluationsTotal        *prometheus.CounterVec
	EvaluationDuration      prometheus.Histogram
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg. A nil reg leaves them
// unregistered, which keeps tests independent of the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EvaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "harness",
			Name:      "evaluations_total",
			Help:      "Evaluations by outcome and execution error kind.",
		}, []string{"outcome", "kind"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "harness",
			Name:      "duration_seconds",
			Help:      "Wall time of a single evaluation, sandbox included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		ProviderRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Language model requests by operation and status.",
		}, []string{"operation", "status"}),
		ProviderRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Latency of language model requests.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"operation"}),
	}
}

// RecordEvaluation counts one evaluation and observes its duration.
func (m *Metrics) RecordEvaluation(outcome, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(outcome, kind).Inc()
	m.EvaluationDuration.Observe(d.Seconds())
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ProviderRequestsTotal.WithLabelValues(operation, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}
