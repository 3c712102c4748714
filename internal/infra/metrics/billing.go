package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sweepResultsTotal,
		subscriptionsPastDueTotal,
	)
}

var (
	sweepResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_sweep_results_total",
			Help: "Per-subscription outcomes of billing sweeps.",
		},
		[]string{"result"},
	)

	subscriptionsPastDueTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_past_due_total",
			Help: "Subscriptions transitioned to past_due by the sweep.",
		},
	)
)

func ObserveSweep(charged, skipped, failed, cancelled int) {
	sweepResultsTotal.WithLabelValues("charged").Add(float64(charged))
	sweepResultsTotal.WithLabelValues("skipped").Add(float64(skipped))
	sweepResultsTotal.WithLabelValues("failed").Add(float64(failed))
	sweepResultsTotal.WithLabelValues("cancelled").Add(float64(cancelled))
}

func IncSubscriptionPastDue() {
	subscriptionsPastDueTotal.Inc()
}
