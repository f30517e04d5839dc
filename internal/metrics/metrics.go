// Package metrics exposes Prometheus collectors for the directory service.
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

// Search outcomes recorded by ObserveSearch.
const (
	SearchOK    = "ok"
	SearchError = "error"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	searchQueriesTotal         *prometheus.CounterVec
	searchDurationSeconds      prometheus.Histogram
	searchResultsCount         prometheus.Gauge

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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		searchQueriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "directory_search_queries_total",
				Help: "Total fixed-name searches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		searchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "directory_search_duration_seconds",
				Help:    "Record store count latency for the fixed-name search.",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		)

		searchResultsCount = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "directory_search_results_count",
				Help: "Match count returned by the most recent successful search.",
			},
		)
	})
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

// ObserveSearch records one search outcome. Latency and result count are only
// recorded for successful searches.
func ObserveSearch(outcome string, results int64, duration time.Duration) {
	if searchQueriesTotal == nil {
		return
	}
	searchQueriesTotal.WithLabelValues(outcome).Inc()
	if outcome != SearchOK {
		return
	}
	searchDurationSeconds.Observe(duration.Seconds())
	searchResultsCount.Set(float64(results))
}
