package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		duplicateCallbacksTotal,
		reconciliationConflictsTotal,
	)
}

var (
	duplicateCallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_duplicate_callbacks_total",
			Help: "Gateway callbacks resolved as idempotent no-ops.",
		},
	)

	reconciliationConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_conflicts_total",
			Help: "Reconciliation conflicts held for manual review, by reason.",
		},
		[]string{"reason"},
	)
)

func IncDuplicateCallback() {
	duplicateCallbacksTotal.Inc()
}

func IncReconciliationConflict(reason string) {
	reconciliationConflictsTotal.WithLabelValues(norm(reason)).Inc()
}
