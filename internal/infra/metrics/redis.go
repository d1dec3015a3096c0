package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal, rateLimitTotal) }

var (
	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Redis cache lookups by cache and result.",
		},
		[]string{"cache", "result"}, // cache="ticket_policy", result=hit|miss|error
	)

	rateLimitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_rate_limit_total",
			Help: "Scan rate limiter decisions.",
		},
		[]string{"result"}, // allowed, limited, error
	)
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func IncRateLimit(result string) {
	rateLimitTotal.WithLabelValues(norm(result)).Inc()
}
