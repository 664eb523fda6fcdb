package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequests, cacheInvalidations) }

var (
	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Group and bank-list cache lookups by result.",
		},
		[]string{"cache", "result"}, // result: hit | miss
	)
	cacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Cache entries dropped after a write.",
		},
		[]string{"cache"},
	)
)

func IncCacheRequest(cacheName, result string) {
	cacheRequests.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func IncCacheInvalidation(cacheName string) {
	cacheInvalidations.WithLabelValues(norm(cacheName)).Inc()
}
