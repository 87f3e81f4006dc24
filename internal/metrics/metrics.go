// Package metrics exposes process-wide Prometheus collectors for the analyzer
// service.
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
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	analyzerRunsTotal          *prometheus.CounterVec
	analyzerActiveRuns         prometheus.Gauge
	analyzerQueueRejectedTotal prometheus.Counter
	analyzerRateLimitDelays    *prometheus.HistogramVec
	analyzerLLMRequestsTotal   *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
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

		analyzerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_runs_total",
				Help: "Total number of analysis runs finished, labeled by final status.",
			},
			[]string{"status"},
		)

		analyzerActiveRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "analyzer_active_runs",
				Help: "Number of analysis runs currently holding a browser session.",
			},
		)

		analyzerQueueRejectedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "analyzer_queue_rejected_total",
				Help: "Analysis requests rejected because the run queue was full.",
			},
		)

		analyzerRateLimitDelays = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analyzer_rate_limit_delay_seconds",
				Help:    "Histogram of politeness limiter waits between page loads.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		analyzerLLMRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyzer_llm_requests_total",
				Help: "Language model calls, labeled by purpose and outcome.",
			},
			[]string{"purpose", "outcome"},
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
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRun increments the finished run counter for the given status.
func ObserveRun(status string) {
	if analyzerRunsTotal == nil {
		return
	}
	analyzerRunsTotal.WithLabelValues(status).Inc()
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	if analyzerActiveRuns != nil {
		analyzerActiveRuns.Inc()
	}
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	if analyzerActiveRuns != nil {
		analyzerActiveRuns.Dec()
	}
}

// ObserveQueueRejected counts a submission turned away by a full queue.
func ObserveQueueRejected() {
	if analyzerQueueRejectedTotal != nil {
		analyzerQueueRejectedTotal.Inc()
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	if analyzerRateLimitDelays == nil {
		return
	}
	analyzerRateLimitDelays.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveLLMRequest counts one model call. outcome is "ok" or "error".
func ObserveLLMRequest(purpose, outcome string) {
	if analyzerLLMRequestsTotal == nil {
		return
	}
	analyzerLLMRequestsTotal.WithLabelValues(purpose, outcome).Inc()
}
