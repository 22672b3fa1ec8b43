// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal             *prometheus.CounterVec
	crawlerFetchDurationSeconds   *prometheus.HistogramVec
	crawlerProductURLsTotal       *prometheus.CounterVec
	crawlerBatchesTotal           *prometheus.CounterVec
	crawlerBatchRowsTotal         prometheus.Counter
	crawlerCrawlsTotal            *prometheus.CounterVec
	crawlerActiveCrawls           prometheus.Gauge
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages fetched, labeled by site, status and fetch path.",
			},
			[]string{"site", "status", "path"},
		)

		crawlerFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_fetch_duration_seconds",
				Help:    "Histogram of successful fetch latencies, labeled by fetch path.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"path"},
		)

		crawlerProductURLsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_product_urls_total",
				Help: "Total number of product URLs identified, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_batches_total",
				Help: "Total number of batch flushes, labeled by outcome.",
			},
			[]string{"status"},
		)

		crawlerBatchRowsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_batch_rows_total",
				Help: "Total number of product rows committed to storage.",
			},
		)

		crawlerCrawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_crawls_total",
				Help: "Total number of crawls run, labeled by outcome.",
			},
			[]string{"status"},
		)

		crawlerActiveCrawls = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_crawls",
				Help: "Number of crawls currently running.",
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 300},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	crawlerRateLimitDelaysSeconds.WithLabelValues(SanitizeSite(domain)).Observe(duration.Seconds())
}

// CrawlStarted bumps the active crawl gauge.
func CrawlStarted() {
	crawlerActiveCrawls.Inc()
}

// CrawlFinished lowers the active crawl gauge and counts the outcome.
func CrawlFinished(status string) {
	crawlerActiveCrawls.Dec()
	crawlerCrawlsTotal.WithLabelValues(status).Inc()
}
