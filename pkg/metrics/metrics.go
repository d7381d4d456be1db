// Package metrics exposes the Prometheus registry used by the catalog cache.
// Metrics are defined in their respective packages (cache, catalog, square,
// ratelimit, notify) via promauto and land in the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registerer.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the default Prometheus gatherer.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total (Counter): Requests served from a fresh snapshot
//   - catalog_cache_misses_total{reason} (Counter): Misses by reason (cold, stale)
//   - catalog_snapshot_size_bytes (Gauge): Size of the last written snapshot
//   - catalog_cache_errors_total{operation} (Counter): Store errors (get, set, touch)
//
// Reconciliation Metrics (pkg/catalog):
//   - catalog_reconciliations_total{result} (Counter): changed, unchanged, failed
//   - catalog_payment_links_created_total (Counter): Links created through Square
//   - catalog_payment_link_lookups_total{outcome} (Counter): cached, created, waited
//
// Notification Metrics (pkg/notify):
//   - catalog_notifications_total{notifier, result} (Counter): Deliveries by notifier
//
// Provider Metrics (pkg/square):
//   - square_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - square_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - square_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - square_rate_limit_hits_total (Counter): 429 responses received
//   - square_rate_limit_blocks_total (Counter): Requests refused during a cool-down
//   - square_rate_limit_cooldown_seconds (Gauge): Last recorded cool-down length
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(catalog_cache_hits_total[5m])) /
//   (sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//   # Share of reconciliations that changed the snapshot
//   rate(catalog_reconciliations_total{result="changed"}[1h]) /
//   rate(catalog_reconciliations_total[1h])
//
//   # P95 Square Latency
//   histogram_quantile(0.95, rate(square_request_duration_seconds_bucket[5m]))
