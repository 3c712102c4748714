package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(gatewayCallLatency)
}

var gatewayCallLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gateway_call_latency_ms",
		Help:    "Payment gateway HTTP call latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
	},
	[]string{"provider", "op", "success"},
)

func ObserveGatewayCall(provider, op string, ms float64, success bool) {
	gatewayCallLatency.WithLabelValues(norm(provider), norm(op), strconv.FormatBool(success)).Observe(ms)
}
