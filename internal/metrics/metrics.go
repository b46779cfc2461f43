// Package metrics exposes Prometheus collectors for the scrapers.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchPagesTotal      *prometheus.CounterVec
	fetchBytesTotal      *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	fetchThrottleSeconds *prometheus.HistogramVec
	convertPayloadsTotal *prometheus.CounterVec
	taskRunsTotal        *prometheus.CounterVec
	taskDurationSeconds  *prometheus.HistogramVec
	mirrorRecordsTotal   *prometheus.CounterVec
	storeOperationsTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call this
// function multiple times.
func Init() {
	once.Do(func() {
		fetchPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapers_fetch_pages_total",
				Help: "Total number of pages fetched, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapers_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrapers_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)

		fetchThrottleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrapers_fetch_throttle_seconds",
				Help:    "Histogram of delays introduced by the per-host rate limiter.",
				Buckets: []float64{0.005, 0.05, 0.25, 1, 5, 15},
			},
			[]string{"site"},
		)

		convertPayloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapers_convert_payloads_total",
				Help: "Total number of payloads decoded, labeled by converter.",
			},
			[]string{"converter"},
		)

		taskRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapers_task_runs_total",
				Help: "Total number of task runs, labeled by task and outcome.",
			},
			[]string{"task", "outcome"},
		)

		taskDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrapers_task_duration_seconds",
				Help:    "Histogram of whole-task durations, labeled by task.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"task"},
		)

		mirrorRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapers_mirror_records_total",
				Help: "Total number of mirror records moved, labeled by collection and direction.",
			},
			[]string{"collection", "direction"},
		)

		storeOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapers_store_operations_total",
				Help: "Total number of record store operations, labeled by operation and outcome.",
			},
			[]string{"op", "outcome"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL, or "unknown".
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

// ObserveFetch records one fetch attempt.
func ObserveFetch(site, outcome string, bytesFetched int, duration time.Duration) {
	if fetchPagesTotal == nil {
		return
	}
	sanitized := SanitizeSite(site)
	fetchPagesTotal.WithLabelValues(sanitized, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
	fetchDurationSeconds.WithLabelValues(sanitized).Observe(duration.Seconds())
}

// ObserveThrottle records a delay imposed by the per-host rate limiter.
func ObserveThrottle(host string, duration time.Duration) {
	if fetchThrottleSeconds == nil {
		return
	}
	fetchThrottleSeconds.WithLabelValues(SanitizeSite(host)).Observe(duration.Seconds())
}

// ObserveConversion counts one decoded payload per converter.
func ObserveConversion(converter string) {
	if convertPayloadsTotal == nil {
		return
	}
	convertPayloadsTotal.WithLabelValues(converter).Inc()
}

// ObserveTask records one task run.
func ObserveTask(task, outcome string, duration time.Duration) {
	if taskRunsTotal == nil {
		return
	}
	taskRunsTotal.WithLabelValues(task, outcome).Inc()
	taskDurationSeconds.WithLabelValues(task).Observe(duration.Seconds())
}

// ObserveMirror counts records moved between the store and the mirror.
func ObserveMirror(collection, direction string, count int) {
	if mirrorRecordsTotal == nil || count == 0 {
		return
	}
	mirrorRecordsTotal.WithLabelValues(collection, direction).Add(float64(count))
}

// ObserveStore counts one record store operation.
func ObserveStore(op, outcome string) {
	if storeOperationsTotal == nil {
		return
	}
	storeOperationsTotal.WithLabelValues(op, outcome).Inc()
}
