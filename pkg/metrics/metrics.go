// Package metrics exposes the gateway's Prometheus metrics.
// All metrics are defined in their respective packages (aggregator, upstream,
// cache, ratelimit) via promauto to keep packages modular; this package owns
// the registry and the scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the gateway.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Aggregate Metrics (pkg/aggregator):
//   - events_aggregate_requests_total{operation, outcome} (Counter): unified/single/get by ok/partial/error
//   - events_aggregate_request_duration_seconds{operation} (Histogram): Request duration by operation
//   - events_source_items_total{source} (Counter): Items fetched and normalized per source
//   - events_source_failures_total{source, operation} (Counter): Failed count/fetch/normalize/get calls
//   - events_partial_pages_total (Counter): Pages served with at least one failed source
//
// Upstream Metrics (pkg/upstream):
//   - events_upstream_requests_total{source, status} (Counter): Requests by source and HTTP status
//   - events_upstream_request_duration_seconds{source} (Histogram): Request duration including retries
//   - events_upstream_errors_total{source, class} (Counter): Errors by class (client, server, rate_limit, network)
//   - events_upstream_retries_total{source, error_class} (Counter): Retry attempts
//   - events_upstream_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - events_upstream_retry_exhausted_total{source, error_class} (Counter): Requests that exhausted retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - events_upstream_budget_remaining{source} (Gauge): Requests left in the upstream window
//   - events_upstream_budget_blocks_total{source} (Counter): Requests blocked on an exhausted budget
//   - events_upstream_budget_throttles_total{source} (Counter): Requests throttled on a low budget
//
// Cache Metrics (pkg/cache):
//   - events_cache_hits_total{namespace} (Counter): Cache hits by namespace
//   - events_cache_misses_total{namespace} (Counter): Cache misses by namespace
//   - events_cache_errors_total{operation} (Counter): Cache operation errors
//
// HTTP Metrics (internal/httpapi):
//   - events_http_requests_total{route, status} (Counter): API requests
//   - events_http_request_duration_seconds{route} (Histogram): API latency
//
// Example Prometheus Queries:
//
//   # Count cache hit rate
//   sum(rate(events_cache_hits_total{namespace="count"}[5m])) /
//   (sum(rate(events_cache_hits_total{namespace="count"}[5m])) + sum(rate(events_cache_misses_total{namespace="count"}[5m])))
//
//   # Upstream error rate per source
//   sum by (source) (rate(events_upstream_errors_total[5m]))
//
//   # Partial page ratio
//   rate(events_partial_pages_total[5m]) / rate(events_aggregate_requests_total{operation="unified"}[5m])
//
//   # P95 unified page latency
//   histogram_quantile(0.95, rate(events_aggregate_request_duration_seconds_bucket{operation="unified"}[5m]))
