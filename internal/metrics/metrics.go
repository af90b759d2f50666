package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaintalk_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaintalk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaintalk_chat_requests_total",
			Help: "Total number of chat turns handled, by classified intent.",
		},
		[]string{"intent"},
	)

	LLMRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chaintalk_llm_request_duration_seconds",
			Help:    "Generative backend call duration in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ContextCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chaintalk_context_cache_hits_total",
			Help: "Context selection cache hits.",
		},
	)

	ContextCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chaintalk_context_cache_misses_total",
			Help: "Context selection cache misses.",
		},
	)

	ContextDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chaintalk_context_degraded_total",
			Help: "Context builds that degraded to [system, query] because the store was unavailable.",
		},
	)

	ContextTokensSelected = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chaintalk_context_tokens_selected",
			Help:    "Estimated token count of selected conversation context per build.",
			Buckets: prometheus.ExponentialBuckets(64, 2, 12),
		},
	)

	ResponseCacheEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaintalk_response_cache_events_total",
			Help: "Response cache wrapper events (hit, miss, set, error).",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ChatRequestsTotal,
		LLMRequestDuration,
		ContextCacheHitsTotal,
		ContextCacheMissesTotal,
		ContextDegradedTotal,
		ContextTokensSelected,
		ResponseCacheEventsTotal,
	)
}
