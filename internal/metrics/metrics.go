package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the HRMS processes. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Operations     *prometheus.CounterVec
	StoreDuration  *prometheus.HistogramVec
	RateLimited    prometheus.Counter
	ChangesApplied *prometheus.CounterVec
}

// New registers all collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hrms_operations_total",
			Help: "Domain operations by name and outcome (ok or error kind).",
		}, []string{"operation", "outcome"}),
		StoreDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hrms_store_duration_seconds",
			Help:    "Latency of record store calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "hrms_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter.",
		}),
		ChangesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hrms_changes_applied_total",
			Help: "Change messages projected onto revision counters, by entity.",
		}, []string{"entity"}),
	}
}

func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveStore(operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StoreDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Metrics) IncChangeApplied(entity string) {
	if m == nil {
		return
	}
	m.ChangesApplied.WithLabelValues(entity).Inc()
}
