// Package metrics exposes Prometheus instrumentation for the benefit ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger's Prometheus collectors. A nil *Metrics is safe
// everywhere; services guard each observation so tests can skip registration.
type Metrics struct {
	reportsRegistered *prometheus.CounterVec
	eligibilityDenied *prometheus.CounterVec
	conflictRetries   prometheus.Counter
	evaluateDuration  *prometheus.HistogramVec
}

// New creates and registers all collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reportsRegistered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amparo_reports_registered_total",
			Help: "Benefit deliveries successfully recorded, by benefit type.",
		}, []string{"benefit_type"}),
		eligibilityDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amparo_eligibility_denied_total",
			Help: "Registrations rejected by the cooldown window, by benefit type.",
		}, []string{"benefit_type"}),
		conflictRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "amparo_ledger_conflict_retries_total",
			Help: "Transient storage conflicts retried by the registrar.",
		}),
		evaluateDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amparo_evaluate_duration_seconds",
			Help:    "Latency of eligibility evaluations, by benefit type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"benefit_type"}),
	}
}

func (m *Metrics) IncReportsRegistered(benefitType string) {
	if m == nil {
		return
	}
	m.reportsRegistered.WithLabelValues(benefitType).Inc()
}

func (m *Metrics) IncEligibilityDenied(benefitType string) {
	if m == nil {
		return
	}
	m.eligibilityDenied.WithLabelValues(benefitType).Inc()
}

func (m *Metrics) IncConflictRetries() {
	if m == nil {
		return
	}
	m.conflictRetries.Inc()
}

func (m *Metrics) ObserveEvaluateDuration(benefitType string, seconds float64) {
	if m == nil {
		return
	}
	m.evaluateDuration.WithLabelValues(benefitType).Observe(seconds)
}
