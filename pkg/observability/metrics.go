package observability

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Event store
	EventsTrackedTotal *prometheus.CounterVec

	// Popular-URL index
	PopularURLUpsertsTotal *prometheus.CounterVec

	// Daily aggregator
	AggregationRunsTotal     *prometheus.CounterVec
	AggregationDuration      prometheus.Histogram
	AggregationEventsScanned prometheus.Histogram

	// Dashboard
	DashboardRequestsTotal *prometheus.CounterVec
	DashboardDuration      *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	otel *OTelMetrics
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seotools_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seotools_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seotools_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seotools_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		EventsTrackedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seotools_events_tracked_total",
				Help: "Total number of analytics events recorded",
			},
			[]string{"event_type", "status"},
		),

		PopularURLUpsertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seotools_popular_url_upserts_total",
				Help: "Popular-URL upserts by outcome (updated, inserted, retried, error)",
			},
			[]string{"result"},
		),

		AggregationRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seotools_aggregation_runs_total",
				Help: "Total number of daily aggregation runs",
			},
			[]string{"status"},
		),
		AggregationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seotools_aggregation_duration_seconds",
				Help:    "Daily aggregation duration in seconds",
				Buckets: []float64{.05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
		),
		AggregationEventsScanned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seotools_aggregation_events_scanned",
				Help:    "Number of raw events scanned per aggregation run",
				Buckets: prometheus.ExponentialBuckets(10, 10, 7),
			},
		),

		DashboardRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seotools_dashboard_requests_total",
				Help: "Dashboard summaries served, by data source (aggregates, realtime, unavailable, cache)",
			},
			[]string{"source"},
		),
		DashboardDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seotools_dashboard_duration_seconds",
				Help:    "Dashboard summary computation time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seotools_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seotools_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "seotools_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "seotools_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "seotools_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "seotools_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.EventsTrackedTotal,
		m.PopularURLUpsertsTotal,
		m.AggregationRunsTotal,
		m.AggregationDuration,
		m.AggregationEventsScanned,
		m.DashboardRequestsTotal,
		m.DashboardDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
	)

	return m
}

// RecordEvent counts one tracked event. Safe on a nil receiver.
func (m *Metrics) RecordEvent(eventType string, err error) {
	if m == nil {
		return
	}
	m.EventsTrackedTotal.WithLabelValues(eventType, statusLabel(err)).Inc()
	if m.otel != nil {
		m.otel.recordEvent(context.Background(), eventType, statusLabel(err))
	}
}

// RecordPopularUpsert counts one popular-URL upsert outcome. Safe on a nil receiver.
func (m *Metrics) RecordPopularUpsert(result string) {
	if m == nil {
		return
	}
	m.PopularURLUpsertsTotal.WithLabelValues(result).Inc()
	if m.otel != nil {
		m.otel.recordPopularUpsert(context.Background(), result)
	}
}

// RecordAggregation records one daily aggregation run. Safe on a nil receiver.
func (m *Metrics) RecordAggregation(duration time.Duration, scanned int, err error) {
	if m == nil {
		return
	}
	m.AggregationRunsTotal.WithLabelValues(statusLabel(err)).Inc()
	m.AggregationDuration.Observe(duration.Seconds())
	if err == nil {
		m.AggregationEventsScanned.Observe(float64(scanned))
	}
	if m.otel != nil {
		m.otel.recordAggregation(context.Background(), duration, statusLabel(err))
	}
}

// RecordDashboard records one dashboard summary by source. Safe on a nil receiver.
func (m *Metrics) RecordDashboard(source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DashboardRequestsTotal.WithLabelValues(source).Inc()
	m.DashboardDuration.WithLabelValues(source).Observe(duration.Seconds())
	if m.otel != nil {
		m.otel.recordDashboard(context.Background(), source, duration)
	}
}

// RecordCache records a cache lookup. Safe on a nil receiver.
func (m *Metrics) RecordCache(cacheType string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// UpdateDBStats copies connection pool statistics into the DB gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
	m.DBConnectionsWaitDuration.Set(stats.WaitDuration.Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel prefers the matched mux route template to keep label cardinality bounded
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := routeLabel(r)
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, path).Observe(float64(r.ContentLength))
			}

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
