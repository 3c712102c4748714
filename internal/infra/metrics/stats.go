package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		revenueByPeriod,
		subscriptionsActive,
	)
}

var (
	revenueByPeriod = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "revenue_krw",
			Help: "Successful payment volume for the current calendar period.",
		},
		[]string{"period"},
	)

	subscriptionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_active",
			Help: "Currently active subscriptions per plan.",
		},
		[]string{"plan"},
	)
)

func SetPeriodRevenue(period string, amount int64) {
	revenueByPeriod.WithLabelValues(norm(period)).Set(float64(amount))
}

// SetActiveSubscriptions replaces the per-plan gauge wholesale so plans that
// dropped to zero do not linger at their last value.
func SetActiveSubscriptions(byPlan map[string]int) {
	subscriptionsActive.Reset()
	for plan, n := range byPlan {
		subscriptionsActive.WithLabelValues(norm(plan)).Set(float64(n))
	}
}
