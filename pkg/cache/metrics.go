package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks page cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "star_export_cache_hits_total",
		Help: "Total number of page cache hits",
	})

	// CacheMisses tracks page cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "star_export_cache_misses_total",
		Help: "Total number of page cache misses",
	})

	// CacheWrittenBytes tracks bytes written to the page cache.
	CacheWrittenBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "star_export_cache_written_bytes_total",
		Help: "Total bytes written to the page cache",
	})

	// NotModifiedResponses tracks 304 Not Modified responses served from cache.
	NotModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "star_export_304_responses_total",
		Help: "Total number of 304 Not Modified responses",
	})

	// ConditionalRequestsSent tracks requests sent with validators.
	ConditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "star_export_conditional_requests_total",
		Help: "Total number of conditional requests sent",
	})

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "star_export_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
