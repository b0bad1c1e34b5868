package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentCallbacksTotal,
		PaymentVerifyRequests,
		PaymentVerifyDuration,
	)
}

var (
	// result: ok|fail
	// reason (fail only): bad_signature|bad_payload|not_found|error
	paymentCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Provider callbacks by result and bounded reason.",
		},
		[]string{"result", "reason"},
	)

	// Count of verify calls grouped by result and bounded reason.
	// reason (fail only): bad_json|missing_txn|not_found|provider_error|unknown
	PaymentVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Count of /api/v1/payment/verify calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of verify handler grouped by result.
	PaymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of /api/v1/payment/verify handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)
)

func IncCallback(result, reason string) {
	paymentCallbacksTotal.WithLabelValues(norm(result), norm(reason)).Inc()
}
