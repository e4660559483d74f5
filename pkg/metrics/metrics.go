// Package metrics defines the Prometheus metric collectors used across the
// harness and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
	HTTPRequestsInFlight    prometheus.Gauge
	SearchLatency           *prometheus.HistogramVec
	SearchResultsCount      *prometheus.HistogramVec
	EvaluationQueriesTotal  *prometheus.CounterVec
	EvaluationRunsTotal     *prometheus.CounterVec
	EvaluationRunDuration   prometheus.Histogram
	ScorerFitDuration       *prometheus.HistogramVec
	ReportCacheHitsTotal    prometheus.Counter
	ReportCacheMissesTotal  prometheus.Counter
	CorpusDocuments         *prometheus.GaugeVec
	EvaluationEventsDropped prometheus.Counter
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Per-algorithm search latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"algorithm"},
		),
		SearchResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"algorithm"},
		),
		EvaluationQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_queries_total",
				Help: "Evaluated (query, algorithm) pairs by status (ok, failed, skipped).",
			},
			[]string{"algorithm", "status"},
		),
		EvaluationRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_runs_total",
				Help: "Comparison runs by status.",
			},
			[]string{"status"},
		),
		EvaluationRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "evaluation_run_duration_seconds",
				Help:    "Wall-clock duration of a comparison run.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),
		ScorerFitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scorer_fit_duration_seconds",
				Help:    "Time to build or fit a scorer on a corpus snapshot.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"algorithm"},
		),
		ReportCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "report_cache_hits_total",
				Help: "Total number of comparison report cache hits.",
			},
		),
		ReportCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "report_cache_misses_total",
				Help: "Total number of comparison report cache misses.",
			},
		),
		CorpusDocuments: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "corpus_documents",
				Help: "Number of products in the loaded corpus per dataset.",
			},
			[]string{"dataset"},
		),
		EvaluationEventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "evaluation_events_dropped_total",
				Help: "Evaluation events dropped because the publish buffer was full.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchLatency,
		m.SearchResultsCount,
		m.EvaluationQueriesTotal,
		m.EvaluationRunsTotal,
		m.EvaluationRunDuration,
		m.ScorerFitDuration,
		m.ReportCacheHitsTotal,
		m.ReportCacheMissesTotal,
		m.CorpusDocuments,
		m.EvaluationEventsDropped,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
