// internal/pkg/metrics/checkout.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes
const (
	OutcomeSucceeded     = "succeeded"
	OutcomeReplayed      = "replayed"
	OutcomeDeclined      = "declined"
	OutcomeIndeterminate = "indeterminate"
	OutcomeCommitFailed  = "commit_failed"
	OutcomeRejected      = "rejected"
)

// Checkout records payment submissions and gateway latency
type Checkout struct {
	attempts       *prometheus.CounterVec
	chargeDuration prometheus.Histogram
	escalations    prometheus.Counter
}

// NewCheckout registers the checkout collectors on reg
func NewCheckout(reg prometheus.Registerer) *Checkout {
	m := &Checkout{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_payment_attempts_total",
			Help: "Payment submissions by outcome.",
		}, []string{"outcome"}),
		chargeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkout_charge_duration_seconds",
			Help:    "Time spent waiting on the payment gateway.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "checkout_reconciliation_escalations_total",
			Help: "Charges flagged for manual reconciliation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.chargeDuration, m.escalations)
	}
	return m
}

// IncOutcome counts one submission with the given outcome
func (m *Checkout) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

// ObserveCharge records a gateway round trip
func (m *Checkout) ObserveCharge(d time.Duration) {
	if m == nil {
		return
	}
	m.chargeDuration.Observe(d.Seconds())
}

// IncEscalation counts a charge handed to manual reconciliation
func (m *Checkout) IncEscalation() {
	if m == nil {
		return
	}
	m.escalations.Inc()
}
