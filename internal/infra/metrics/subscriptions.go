package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsExpiredTotal,
		subscriptionsRenewedTotal,
		renewalNoticesTotal,
		accessGateDecisionsTotal,
		sweepRunsTotal,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions expired by the sweep.",
		},
	)

	subscriptionsRenewedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_renewed_total",
			Help: "Auto-renewal attempts by result.",
		},
		[]string{"result"}, // 'renewed', 'failed', 'skipped'
	)

	renewalNoticesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "renewal_notices_total",
			Help: "Upcoming-renewal notices delivered.",
		},
	)

	accessGateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_gate_decisions_total",
			Help: "Access gate decisions by result.",
		},
		[]string{"result"}, // 'allowed', 'denied', 'anonymous'
	)

	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_sweep_runs_total",
			Help: "Expiry sweep runs by outcome.",
		},
		[]string{"result"}, // 'ok', 'error', 'locked'
	)
)

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func IncSubscriptionsRenewed(result string, count int) {
	subscriptionsRenewedTotal.WithLabelValues(norm(result)).Add(float64(count))
}

func IncRenewalNotices(count int) {
	renewalNoticesTotal.Add(float64(count))
}

func IncAccessDecision(result string) {
	accessGateDecisionsTotal.WithLabelValues(norm(result)).Inc()
}

func IncSweepRun(result string) {
	sweepRunsTotal.WithLabelValues(norm(result)).Inc()
}
