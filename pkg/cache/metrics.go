package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks requests served from a fresh snapshot
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Total number of requests served from the cached snapshot",
		},
	)

	// CacheMisses tracks requests that triggered a reconciliation
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Total number of cache misses by reason",
		},
		[]string{"reason"}, // "cold", "stale"
	)

	// SnapshotSize tracks the size of the last written snapshot
	SnapshotSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_snapshot_size_bytes",
			Help: "Size of the last written product snapshot in bytes",
		},
	)

	// CacheErrors tracks store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "touch"
	)
)
