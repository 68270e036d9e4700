// Package metrics provides Prometheus metrics for Guide Naturel
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
// Each instance owns its registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Search metrics
	SearchesTotal       *prometheus.CounterVec
	SearchDuration      prometheus.Histogram
	SearchResultsTotal  prometheus.Counter
	QueryErrorsTotal    *prometheus.CounterVec
	CorrectionsTotal    *prometheus.CounterVec
	ChartRequestsTotal  *prometheus.CounterVec
	ConversationsActive prometheus.Gauge
	ConversationsTotal  prometheus.Counter

	ServerStartTime time.Time
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg, ServerStartTime: time.Now()}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guidenaturel_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guidenaturel_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.SearchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guidenaturel_searches_total",
			Help: "Total number of species searches by aggregation shape",
		},
		[]string{"aggregation_type"},
	)

	m.SearchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guidenaturel_search_duration_seconds",
			Help:    "Duration of species searches including all database round trips",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	m.SearchResultsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "guidenaturel_search_results_total",
			Help: "Total number of species summaries returned",
		},
	)

	m.QueryErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guidenaturel_query_errors_total",
			Help: "Total number of failed database round trips by reason",
		},
		[]string{"reason"},
	)

	m.CorrectionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guidenaturel_fuzzy_corrections_total",
			Help: "Total number of chatbot answers rewritten to a known vocabulary value",
		},
		[]string{"field"},
	)

	m.ChartRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guidenaturel_chart_requests_total",
			Help: "Total number of chart payload requests by info key",
		},
		[]string{"info"},
	)

	m.ConversationsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "guidenaturel_conversations_active",
			Help: "Number of conversations currently held by the session store",
		},
	)

	m.ConversationsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "guidenaturel_conversations_started_total",
			Help: "Total number of conversations started",
		},
	)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "guidenaturel_uptime_seconds",
			Help: "Seconds since the server started",
		},
		func() float64 { return time.Since(m.ServerStartTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one completed HTTP request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveSearch records one completed search.
func (m *Metrics) ObserveSearch(aggregationType string, results int, d time.Duration) {
	m.SearchesTotal.WithLabelValues(aggregationType).Inc()
	m.SearchResultsTotal.Add(float64(results))
	m.SearchDuration.Observe(d.Seconds())
}
