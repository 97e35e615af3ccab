// Package metrics exposes the Prometheus registry used by the exporter.
// All metrics are defined in their respective packages (client, cache,
// pagination, export) via promauto and land in the default registry.
//
// The exporter is a short-lived command, so instead of serving /metrics it
// dumps the registry to a file that a node_exporter textfile collector can
// pick up.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the exporter.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back the metrics registered in Registry.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes every metric gathered from g to path in the text
// exposition format. The file is replaced atomically. A nil g means Gatherer.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if g == nil {
		g = Gatherer
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - star_export_requests_total{status} (Counter): Requests by HTTP status, "cache" or "network_error"
//   - star_export_request_duration_seconds (Histogram): Fetch duration including retries
//   - star_export_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, invalid)
//
// Retry Metrics (pkg/client):
//   - star_export_retries_total{error_class} (Counter): Retry attempts by error class
//   - star_export_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - star_export_retry_exhausted_total{error_class} (Counter): Fetches that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - star_export_cache_hits_total (Counter): Page cache hits
//   - star_export_cache_misses_total (Counter): Page cache misses
//   - star_export_cache_written_bytes_total (Counter): Page bytes written to the cache
//   - star_export_304_responses_total (Counter): 304 Not Modified responses served from cache
//   - star_export_conditional_requests_total (Counter): Conditional requests sent
//   - star_export_cache_errors_total{operation} (Counter): Cache operation errors
//
// Collection Metrics (pkg/pagination):
//   - star_export_pages_total{outcome} (Counter): Pages by outcome (ok, fetch_failed, extract_failed)
//   - star_export_records_total (Counter): Repositories extracted
//   - star_export_collections_total{result} (Counter): Runs by result (complete, failed, config_error)
//   - star_export_collection_duration_seconds (Histogram): Duration of complete runs
//
// Export Metrics (pkg/export):
//   - star_export_snapshots_written_total{format} (Counter): Snapshot files written
//
// Example Prometheus Queries:
//
//   # Runs that failed in the last day
//   increase(star_export_collections_total{result="failed"}[1d])
//
//   # Retry pressure
//   sum by (error_class) (increase(star_export_retries_total[1d]))
//
//   # Cache Hit Rate
//   star_export_cache_hits_total /
//   (star_export_cache_hits_total + star_export_cache_misses_total)
