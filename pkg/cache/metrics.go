package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheEntries tracks the number of live entries
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "userfeed_cache_entries",
			Help: "Current number of paginated cache entries",
		},
	)

	// PagesLoaded tracks pages applied to entries by fetch kind
	PagesLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userfeed_cache_pages_loaded_total",
			Help: "Total number of pages applied to cache entries",
		},
		[]string{"kind"}, // "refetch", "load_more"
	)

	// FetchFailures tracks fetches that settled with an error
	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userfeed_cache_fetch_failures_total",
			Help: "Total number of cache fetches that failed after retries",
		},
		[]string{"category"}, // "network", "timeout", "generic"
	)

	// DedupedLoads tracks load-more calls dropped because a fetch was in flight
	DedupedLoads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "userfeed_cache_deduped_loads_total",
			Help: "Total number of load-more calls skipped due to an in-flight fetch",
		},
	)

	// DiscardedCompletions tracks fetch results dropped after a reset
	DiscardedCompletions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "userfeed_cache_discarded_completions_total",
			Help: "Total number of fetch completions discarded due to a generation mismatch",
		},
	)

	// BackgroundRefetches tracks stale-while-revalidate refetches
	BackgroundRefetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "userfeed_cache_background_refetches_total",
			Help: "Total number of background refetches of stale entries",
		},
	)

	// Evictions tracks entries removed by the GC sweeper
	Evictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "userfeed_cache_evictions_total",
			Help: "Total number of cache entries garbage-collected",
		},
	)
)
