package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal, cacheInvalidationsTotal) }

var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loyalty_cache_requests_total",
		Help: "Query cache lookups, by cache and result.",
	},
	[]string{"cache", "result"}, // result: hit | miss | error
)

var cacheInvalidationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loyalty_cache_invalidations_total",
		Help: "Query cache keys dropped after a write.",
	},
	[]string{"cache"},
)

func IncCacheRequest(cache, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cache), norm(result)).Inc()
}

func IncCacheInvalidation(cache string) { cacheInvalidationsTotal.WithLabelValues(norm(cache)).Inc() }
