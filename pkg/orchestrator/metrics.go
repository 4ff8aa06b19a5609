package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors the orchestrator reports
// pipeline-level timing and outcome counts through. A nil *Metrics is
// valid: every call site checks for it before use.
type Metrics struct {
	duration *prometheus.HistogramVec
	failures prometheus.Counter
}

// NewMetrics builds and registers a Metrics instance against reg. Callers
// that already hold a *prometheus.Registry from elsewhere in the process
// (e.g. an HTTP /metrics handler) pass it in directly; pass
// prometheus.DefaultRegisterer to use the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "legal_severity_classifier",
			Subsystem: "orchestrator",
			Name:      "classification_duration_seconds",
			Help:      "End-to-end duration of one document classification, labeled by routing decision.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"routing_decision"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "legal_severity_classifier",
			Subsystem: "orchestrator",
			Name:      "classification_failures_total",
			Help:      "Count of classifications that failed before a result could be produced.",
		}),
	}
	reg.MustRegister(m.duration, m.failures)
	return m
}

// ObserveDuration records one completed classification's wall-clock time,
// labeled by the routing decision it was ultimately routed to.
func (m *Metrics) ObserveDuration(d time.Duration, routingDecision string) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(routingDecision).Observe(d.Seconds())
}

// ObserveFailure records one classification that errored out before a
// result was produced (as opposed to a low-confidence result routed to
// human review, which is a successful classification).
func (m *Metrics) ObserveFailure() {
	if m == nil {
		return
	}
	m.failures.Inc()
}
