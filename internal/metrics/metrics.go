package metrics

import "github.com/prometheus/client_golang/prometheus"

// Refresh outcomes.
const (
	RefreshSuccess = "success"
	RefreshFailure = "failure"
	RefreshSkipped = "skipped"
)

// Metrics holds the session agent collectors.
type Metrics struct {
	refreshTotal     *prometheus.CounterVec
	reconcileRepairs *prometheus.CounterVec
	reconcileErrors  prometheus.Counter
	checksTotal      prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gophdate",
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Token refresh attempts by result.",
		}, []string{"result"}),
		reconcileRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gophdate",
			Subsystem: "session",
			Name:      "reconcile_repairs_total",
			Help:      "Storage divergences repaired by direction.",
		}, []string{"direction"}),
		reconcileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gophdate",
			Subsystem: "session",
			Name:      "reconcile_errors_total",
			Help:      "Reconciliation passes that failed.",
		}),
		checksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gophdate",
			Subsystem: "session",
			Name:      "expiry_checks_total",
			Help:      "Expiry checks run by the scheduler.",
		}),
	}

	reg.MustRegister(m.refreshTotal, m.reconcileRepairs, m.reconcileErrors, m.checksTotal)
	return m
}

// NewNoop creates collectors registered with a private registry.
func NewNoop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveRefresh counts a refresh attempt with the given result.
func (m *Metrics) ObserveRefresh(result string) {
	m.refreshTotal.WithLabelValues(result).Inc()
}

// ObserveRepair counts a reconciliation repair.
func (m *Metrics) ObserveRepair(direction string) {
	m.reconcileRepairs.WithLabelValues(direction).Inc()
}

// ObserveReconcileError counts a failed reconciliation pass.
func (m *Metrics) ObserveReconcileError() {
	m.reconcileErrors.Inc()
}

// ObserveCheck counts a scheduler expiry check.
func (m *Metrics) ObserveCheck() {
	m.checksTotal.Inc()
}
