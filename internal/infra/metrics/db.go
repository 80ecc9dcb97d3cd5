package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(dbPoolStats, dbQueryDuration) }

var dbPoolStats = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "db_pool_stats",
		Help: "Current state of the database connection pool.",
	},
	[]string{"state"}, // 'total', 'idle', 'in_use'
)

var dbQueryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Latency of repository queries.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"query"},
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

// ObserveQuery is meant to be deferred: defer metrics.ObserveQuery("profile_find")()
func ObserveQuery(query string) func() {
	start := time.Now()
	return func() {
		dbQueryDuration.WithLabelValues(norm(query)).Observe(time.Since(start).Seconds())
	}
}
