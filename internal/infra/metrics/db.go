package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConns, dbPoolMax, dbEmptyAcquires) }

// PoolStats is a snapshot of the ledger connection pool.
type PoolStats struct {
	Total         int32
	Idle          int32
	InUse         int32
	Max           int32
	EmptyAcquires int64
}

var (
	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Ledger database pool connections by state.",
		},
		[]string{"state"}, // total | idle | in_use
	)
	dbPoolMax = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_max_connections",
		Help: "Configured pool size.",
	})
	dbEmptyAcquires = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_empty_acquires",
		Help: "Cumulative acquires that had to wait for a free connection.",
	})
)

func ObservePool(s PoolStats) {
	dbPoolConns.WithLabelValues("total").Set(float64(s.Total))
	dbPoolConns.WithLabelValues("idle").Set(float64(s.Idle))
	dbPoolConns.WithLabelValues("in_use").Set(float64(s.InUse))
	dbPoolMax.Set(float64(s.Max))
	dbEmptyAcquires.Set(float64(s.EmptyAcquires))
}
