// Package metrics provides the centralized Prometheus metrics registry for
// the OTA client. All metrics are defined in their respective packages
// (provider, ratelimit, batch, session, cache) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the OTA client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/provider):
//   - ota_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - ota_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ota_errors_total{class} (Counter): Errors by class (client, server, network, timeout)
//
// Retry Metrics (pkg/provider):
//   - ota_retries_total{error_class} (Counter): Retry attempts by error class
//   - ota_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - ota_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ota_limiter_wait_seconds (Histogram): Time spent waiting for a permit
//   - ota_limiter_in_flight (Gauge): Permits currently held
//
// Detail Fetch Metrics (pkg/batch):
//   - ota_detail_chunks_total{outcome} (Counter): Detail chunks dispatched by outcome
//   - ota_detail_chunk_duration_seconds (Histogram): Duration of one chunk round trip
//   - ota_detail_results_total{outcome} (Counter): Per-identifier results by outcome (ok, error, missing)
//
// Session Metrics (pkg/session):
//   - ota_sessions_total{state} (Counter): Sessions by terminal state (completed, cancelled, failed)
//   - ota_session_duration_seconds (Histogram): Session wall time to terminal state
//   - ota_merge_results_total{outcome} (Counter): Results merged into the active session
//   - ota_merge_discarded_total{reason} (Counter): Results discarded at the merge boundary (superseded, cancelled)
//
// Cache Metrics (pkg/cache):
//   - ota_hotel_cache_hits_total (Counter): Hotel detail cache hits
//   - ota_hotel_cache_misses_total (Counter): Hotel detail cache misses
//   - ota_hotel_cache_size_bytes (Gauge): Bytes written to the detail cache
//   - ota_hotel_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ota_hotel_cache_hits_total[5m])) /
//   (sum(rate(ota_hotel_cache_hits_total[5m])) + sum(rate(ota_hotel_cache_misses_total[5m])))
//
//   # Detail Failure Rate
//   rate(ota_detail_results_total{outcome!="ok"}[5m]) / rate(ota_detail_results_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ota_request_duration_seconds_bucket[5m]))
//
//   # Supersession Discards
//   rate(ota_merge_discarded_total[5m])
