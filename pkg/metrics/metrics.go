// Package metrics provides the Prometheus registry of the user feed client.
// Fetch and cache metrics are defined in their own packages (client, cache)
// to avoid circular dependencies. This package owns the HTTP-facing metrics
// of the serve command and documents the full catalogue.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is where the scrape handler registers its own counters. All other
// metrics are registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source the scrape handler exposes.
var Gatherer = prometheus.DefaultGatherer

var (
	// HTTPRequests counts API requests served by route and status code
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userfeed_http_requests_total",
			Help: "Total API requests served by route and status code",
		},
		[]string{"route", "code"},
	)

	// HTTPDuration observes API request latency by route
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "userfeed_http_request_duration_seconds",
			Help:    "API request duration in seconds by route",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"route"},
	)
)

// Handler returns the scrape handler for Gatherer. Scrapes are counted in
// promhttp_metric_handler_requests_total on Registry.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		Registry,
		promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}),
	)
}

// Instrument wraps next so every request is counted under route.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - userfeed_requests_total{status} (Counter): Page requests by HTTP status ("transport" or "parse" when no usable status)
//   - userfeed_request_duration_seconds (Histogram): Page request duration
//   - userfeed_errors_total{class} (Counter): Fetch errors by class (client, server, rate_limit, network, timeout, parse, canceled)
//
// Retry Metrics (pkg/client):
//   - userfeed_retries_total{error_class} (Counter): Retry attempts by error class
//   - userfeed_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - userfeed_retry_exhausted_total{error_class} (Counter): Fetches that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - userfeed_cache_entries (Gauge): Live paginated entries
//   - userfeed_cache_pages_loaded_total{kind} (Counter): Pages applied by kind (refetch, load_more)
//   - userfeed_cache_fetch_failures_total{category} (Counter): Fetches failed after retries by category
//   - userfeed_cache_deduped_loads_total (Counter): Load-more calls skipped due to an in-flight fetch
//   - userfeed_cache_discarded_completions_total (Counter): Completions dropped after a reset
//   - userfeed_cache_background_refetches_total (Counter): Stale-while-revalidate refetches
//   - userfeed_cache_evictions_total (Counter): Entries garbage-collected
//
// API Metrics (pkg/metrics, serve command):
//   - userfeed_http_requests_total{route, code} (Counter): API requests served
//   - userfeed_http_request_duration_seconds{route} (Histogram): API request latency
//
// Example Prometheus Queries:
//
//   # Dedup Rate
//   rate(userfeed_cache_deduped_loads_total[5m]) /
//   sum(rate(userfeed_cache_pages_loaded_total{kind="load_more"}[5m]))
//
//   # Timeout Share of Failures
//   rate(userfeed_cache_fetch_failures_total{category="timeout"}[5m]) /
//   sum(rate(userfeed_cache_fetch_failures_total[5m]))
//
//   # P95 Page Latency
//   histogram_quantile(0.95, rate(userfeed_request_duration_seconds_bucket[5m]))
