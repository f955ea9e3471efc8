// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	platformRequestsTotal          *prometheus.CounterVec
	platformRequestDurationSeconds *prometheus.HistogramVec
	platformRetriesTotal           *prometheus.CounterVec
	rateLimitDelaysSeconds         *prometheus.HistogramVec
	sinkWritesTotal                *prometheus.CounterVec
	crawlersFinishedTotal          *prometheus.CounterVec
	crawlersRunning                prometheus.Gauge
	httpRequestsTotal              *prometheus.CounterVec
	httpRequestDurationSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		platformRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_platform_requests_total",
				Help: "Platform API requests, labeled by endpoint and status code.",
			},
			[]string{"endpoint", "code"},
		)

		platformRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_platform_request_duration_seconds",
				Help:    "Platform API request latency, labeled by endpoint.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"endpoint"},
		)

		platformRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_platform_retries_total",
				Help: "Platform API retries, labeled by endpoint.",
			},
			[]string{"endpoint"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 120},
			},
			[]string{"key"},
		)

		sinkWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_sink_writes_total",
				Help: "Record sink writes, labeled by backend and result.",
			},
			[]string{"backend", "result"},
		)

		crawlersFinishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_engines_finished_total",
				Help: "Crawler engines that stopped, labeled by crawler and final state.",
			},
			[]string{"crawler", "state"},
		)

		crawlersRunning = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_engines_running",
				Help: "Number of crawler engines currently running.",
			},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePlatformRequest records one platform API call. code is 0 when no
// response arrived.
func ObservePlatformRequest(endpoint string, code int, duration time.Duration) {
	Init()
	platformRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	platformRequestDurationSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObservePlatformRetry counts a retried platform call.
func ObservePlatformRetry(endpoint string) {
	Init()
	platformRetriesTotal.WithLabelValues(endpoint).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(key string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(key).Observe(duration.Seconds())
}

// ObserveSinkWrite counts a record write; result is "success" or "error".
func ObserveSinkWrite(backend, result string) {
	Init()
	sinkWritesTotal.WithLabelValues(backend, result).Inc()
}

// ObserveCrawlerFinished counts an engine reaching a terminal state.
func ObserveCrawlerFinished(crawler, state string) {
	Init()
	crawlersFinishedTotal.WithLabelValues(crawler, state).Inc()
}

// IncRunningCrawlers increments the running engines gauge.
func IncRunningCrawlers() {
	Init()
	crawlersRunning.Inc()
}

// DecRunningCrawlers decrements the running engines gauge.
func DecRunningCrawlers() {
	Init()
	crawlersRunning.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
