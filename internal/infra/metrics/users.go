package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		usersRegisteredTotal,
		rateLimitTriggeredTotal,
	)
}

var (
	usersRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Total number of new users registered.",
		},
	)

	rateLimitTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_triggered_total",
			Help: "Requests rejected by the per-user rate limiter.",
		},
		[]string{"route"},
	)
)

func IncUsersRegistered() {
	usersRegisteredTotal.Inc()
}

func IncRateLimitTriggered(route string) {
	rateLimitTriggeredTotal.WithLabelValues(norm(route)).Inc()
}
