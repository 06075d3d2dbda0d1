package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics exposes engine counters. A nil *Metrics is safe to call so
// services can take it as an optional dependency.
type Metrics struct {
	runsStarted       *prometheus.CounterVec
	runsCompleted     *prometheus.CounterVec
	voucherImbalances prometheus.Counter
	queueJobs         *prometheus.CounterVec
	accrualDuplicates prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nomina",
			Name:      "runs_started_total",
			Help:      "Payroll runs started, by execution mode.",
		}, []string{"mode"}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nomina",
			Name:      "runs_completed_total",
			Help:      "Payroll runs finished, by terminal status.",
		}, []string{"status"}),
		voucherImbalances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nomina",
			Name:      "voucher_imbalances_total",
			Help:      "Vouchers generated with a nonzero debit/credit balance.",
		}),
		queueJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nomina",
			Name:      "queue_jobs_total",
			Help:      "Queue jobs processed, by outcome.",
		}, []string{"name", "outcome"}),
		accrualDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nomina",
			Name:      "accrual_duplicates_total",
			Help:      "Vacation accrual applies rejected as duplicates.",
		}),
	}
	reg.MustRegister(m.runsStarted, m.runsCompleted, m.voucherImbalances, m.queueJobs, m.accrualDuplicates)
	return m
}

func (m *Metrics) IncRunStarted(mode string) {
	if m == nil {
		return
	}
	m.runsStarted.WithLabelValues(mode).Inc()
}

func (m *Metrics) IncRunCompleted(status string) {
	if m == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
}

func (m *Metrics) IncVoucherImbalance() {
	if m == nil {
		return
	}
	m.voucherImbalances.Inc()
}

func (m *Metrics) IncQueueJob(name, outcome string) {
	if m == nil {
		return
	}
	m.queueJobs.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) IncAccrualDuplicate() {
	if m == nil {
		return
	}
	m.accrualDuplicates.Inc()
}

var Module = fx.Module("metrics",
	fx.Provide(func() prometheus.Registerer { return prometheus.DefaultRegisterer }),
	fx.Provide(New),
)
