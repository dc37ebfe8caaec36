// Package health exposes Prometheus metrics for the gateway's core
// components: active-stream gauge, cache hit/miss counters, and provider
// search latency (§2's component shares, observed in aggregate).
package health

import "github.com/prometheus/client_golang/prometheus"

var (
	ActiveStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "active_streams",
		Help:      "Number of ActiveStream entries currently tracked by the UsenetController.",
	})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "cache_hits_total",
		Help:      "Total URLCache.Get calls that returned a cached value.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "cache_misses_total",
		Help:      "Total URLCache.Get calls that found no cached value.",
	})

	ProviderSearchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "streamgate",
		Name:      "provider_search_duration_seconds",
		Help:      "Duration of one ProviderSearch.Search call, by provider and outcome.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
	}, []string{"provider", "outcome"})

	DownloadsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "downloads_submitted_total",
		Help:      "Total NZB submissions accepted by UsenetController.OpenStream.",
	})

	StorageEvictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "storage_evictions_total",
		Help:      "Total files deleted by StorageManager, by mode (normal, critical).",
	}, []string{"mode"})
)

// Register attaches every gateway metric to reg. Call once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ActiveStreams,
		CacheHitsTotal,
		CacheMissesTotal,
		ProviderSearchDuration,
		DownloadsSubmittedTotal,
		StorageEvictionsTotal,
	)
}
