package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(refundsTotal)
}

var refundsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "refunds_total",
		Help: "Refund workflow events (requested/approved/rejected/cancel_failed).",
	},
	[]string{"event"},
)

func IncRefund(event string) {
	refundsTotal.WithLabelValues(norm(event)).Inc()
}
