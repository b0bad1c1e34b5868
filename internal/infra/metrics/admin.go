package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(adminGrantTotal) }

var adminGrantTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_grant_total",
		Help: "Direct subscription grants by outcome.",
	},
	[]string{"status"}, // 'granted', 'forbidden', 'error'
)

func IncAdminGrant(status string) {
	adminGrantTotal.WithLabelValues(norm(status)).Inc()
}
