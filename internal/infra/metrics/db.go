package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConns, dbPoolEmptyAcquires, dbPoolSaturated) }

var (
	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"}, // total, idle, acquired, max
	)
	dbPoolEmptyAcquires = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_empty_acquires",
		Help: "Acquires that had to wait for a free connection since start (reported by pgxpool).",
	})
	dbPoolSaturated = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_saturated",
		Help: "1 while every pool connection is acquired.",
	})
)

// PoolStat is the part of *pgxpool.Stat the exporter reads.
type PoolStat interface {
	TotalConns() int32
	IdleConns() int32
	AcquiredConns() int32
	MaxConns() int32
	EmptyAcquireCount() int64
}

// ObserveDBPool copies a pool snapshot into the gauges.
func ObserveDBPool(st PoolStat) {
	dbPoolConns.WithLabelValues("total").Set(float64(st.TotalConns()))
	dbPoolConns.WithLabelValues("idle").Set(float64(st.IdleConns()))
	dbPoolConns.WithLabelValues("acquired").Set(float64(st.AcquiredConns()))
	dbPoolConns.WithLabelValues("max").Set(float64(st.MaxConns()))
	dbPoolEmptyAcquires.Set(float64(st.EmptyAcquireCount()))
	if st.MaxConns() > 0 && st.AcquiredConns() >= st.MaxConns() {
		dbPoolSaturated.Set(1)
	} else {
		dbPoolSaturated.Set(0)
	}
}
