// Package metrics defines the Prometheus metric collectors used by the asset
// search service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	SuggestQueriesTotal  prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	AssetsIndexedTotal   *prometheus.CounterVec
	IndexedAssets        prometheus.Gauge
	IndexKeys            *prometheus.GaugeVec
	RebuildsTotal        *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
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
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, too_short).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		SuggestQueriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "suggest_queries_total",
				Help: "Total autocomplete suggestion queries.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		AssetsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assets_indexed_total",
				Help: "Total index maintenance operations by kind (add, update, remove).",
			},
			[]string{"operation"},
		),
		IndexedAssets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexed_assets",
				Help: "Number of assets currently in the index.",
			},
		),
		IndexKeys: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_keys",
				Help: "Number of keys per inverted index.",
			},
			[]string{"field"},
		),
		RebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_rebuilds_total",
				Help: "Total full index rebuilds by status.",
			},
			[]string{"status"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.SuggestQueriesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.AssetsIndexedTotal,
		m.IndexedAssets,
		m.IndexKeys,
		m.RebuildsTotal,
	)

	return m
}

// SetIndexGauges updates the index-size gauges after a mutation or rebuild.
func (m *Metrics) SetIndexGauges(entries, symbolKeys, nameKeys, categoryKeys, tagKeys int) {
	m.IndexedAssets.Set(float64(entries))
	m.IndexKeys.WithLabelValues("symbol").Set(float64(symbolKeys))
	m.IndexKeys.WithLabelValues("name").Set(float64(nameKeys))
	m.IndexKeys.WithLabelValues("category").Set(float64(categoryKeys))
	m.IndexKeys.WithLabelValues("tag").Set(float64(tagKeys))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
