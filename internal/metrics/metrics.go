package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics tracks cashback ledger activity for operators. Reason-coded
// no-ops are counted separately from actual money movement.
type Metrics struct {
	appliedTotal   prometheus.Counter
	appliedAmount  prometheus.Counter
	reversedTotal  prometheus.Counter
	reversedAmount prometheus.Counter
	noopTotal      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		appliedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebata_cashback_applied_total",
			Help: "Number of orders credited with cashback.",
		}),
		appliedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebata_cashback_applied_amount_total",
			Help: "Total cashback amount credited.",
		}),
		reversedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebata_cashback_reversed_total",
			Help: "Number of returns that clawed back cashback.",
		}),
		reversedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebata_cashback_reversed_amount_total",
			Help: "Total cashback amount clawed back.",
		}),
		noopTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebata_cashback_noop_total",
			Help: "Cashback operations that no-opped, by reason.",
		}, []string{"operation", "reason"}),
	}
	prometheus.MustRegister(
		m.appliedTotal,
		m.appliedAmount,
		m.reversedTotal,
		m.reversedAmount,
		m.noopTotal,
	)
	return m
}

func (m *Metrics) RecordApplied(amount float64) {
	m.appliedTotal.Inc()
	m.appliedAmount.Add(amount)
}

func (m *Metrics) RecordReversed(amount float64) {
	m.reversedTotal.Inc()
	m.reversedAmount.Add(amount)
}

func (m *Metrics) RecordNoop(operation, reason string) {
	m.noopTotal.WithLabelValues(operation, reason).Inc()
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
