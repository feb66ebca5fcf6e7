package urlcheck

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reputationAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "warden_urlrep_api_duration_sec",
	Help: "Duration of URL reputation API calls",
})

var reputationAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_urlrep_api_count",
	Help: "Number of URL reputation API calls, by HTTP status code",
}, []string{"status"})

var urlCacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_url_verdict_cache_hits",
	Help: "Number of URL verdicts served from cache",
})

var urlCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_url_verdict_cache_misses",
	Help: "Number of URL verdict cache misses",
})

var urlLookupFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_url_lookup_fallbacks",
	Help: "Number of reputation lookups that fell back to heuristics",
})
