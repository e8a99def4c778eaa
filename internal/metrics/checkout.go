package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes.
const (
	OutcomeSuccess           = "success"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeFailed            = "failed"
	OutcomePartial           = "partial_settlement"
)

// Reconciliation results.
const (
	ResultApplied = "applied"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// CheckoutMetrics tracks checkout and stock settlement. A nil *CheckoutMetrics
// records nothing.
type CheckoutMetrics struct {
	outcomes           *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	partialSettlements prometheus.Counter
	pendingAdjustments prometheus.Gauge
	reconciled         *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout collectors on registerer.
func NewCheckoutMetrics(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		outcomes: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_outcomes_total",
			Help:      "Checkout attempts grouped by outcome.",
		}, []string{"outcome"})),
		stageDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_stage_duration_seconds",
			Help:      "Time spent in each checkout stage.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"stage"})),
		partialSettlements: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_partial_settlements_total",
			Help:      "Orders recorded whose stock could not be fully adjusted.",
		})),
		pendingAdjustments: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_pending",
			Help:      "Stock adjustments waiting to be applied.",
		})),
		reconciled: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_reconciled_total",
			Help:      "Stock adjustments processed by the reconciler grouped by result.",
		}, []string{"result"})),
	}
}

func (m *CheckoutMetrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *CheckoutMetrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *CheckoutMetrics) RecordPartialSettlement() {
	if m == nil {
		return
	}
	m.partialSettlements.Inc()
}

func (m *CheckoutMetrics) SetPendingAdjustments(n int) {
	if m == nil {
		return
	}
	m.pendingAdjustments.Set(float64(n))
}

func (m *CheckoutMetrics) RecordReconciled(result string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(result).Inc()
}
