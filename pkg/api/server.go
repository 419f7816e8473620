package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/seotools/pkg/httputil"
	"github.com/platinummonkey/seotools/pkg/middleware"
	"github.com/platinummonkey/seotools/pkg/observability"
)

const defaultMaxBodyBytes = 64 * 1024

// ServerConfig carries the dependencies of the API server. Health, Registry, Metrics
// and IngestLimiter are optional.
type ServerConfig struct {
	Tracker    EventTracker
	Dashboard  DashboardService
	Aggregator DailyAggregator
	Popular    PopularURLs
	Recorder   EventRecorder

	Logger   *observability.Logger
	Health   *observability.HealthChecker
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	// IngestLimiter throttles event and tool calls per client IP
	IngestLimiter middleware.Limiter

	ServiceName   string
	CORSOrigins   []string
	SessionMaxAge time.Duration
	MaxBodyBytes  int64
}

// Server represents our API server
type Server struct {
	router   *mux.Router
	handler  http.Handler
	recorder EventRecorder
	ingest   func(http.Handler) http.Handler
}

// NewServer creates a new API server
func NewServer(cfg ServerConfig) *Server {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "seotools-api"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &Server{
		router:   mux.NewRouter(),
		recorder: cfg.Recorder,
	}

	// Route-aware metrics need to run inside the router
	if cfg.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(cfg.Metrics))
	}

	if cfg.Health != nil {
		observability.RegisterHealthRoutes(s.router, cfg.Health)
	}
	if cfg.Registry != nil {
		observability.RegisterMetricsEndpoint(s.router, cfg.Registry)
	}

	if cfg.IngestLimiter != nil {
		s.ingest = middleware.RateLimitMiddleware(cfg.IngestLimiter, cfg.Logger)
	}

	NewAnalyticsHandlers(cfg.Tracker, cfg.Dashboard, cfg.Aggregator, cfg.Popular, cfg.Logger).
		WithIngestLimit(s.ingest).
		RegisterRoutes(s.router)

	chain := httputil.Chain(
		httputil.RecoveryMiddleware(cfg.Logger),
		httputil.RequestIDMiddleware(cfg.Logger),
		httputil.LoggingMiddleware(cfg.Logger),
		httputil.CORSMiddleware(cfg.CORSOrigins),
		httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
		SessionMiddleware(cfg.SessionMaxAge),
	)
	s.handler = otelhttp.NewHandler(chain(s.router), cfg.ServiceName)

	return s
}

// HandleTool mounts a tool endpoint at /api/v1/tools/{toolType}. Each call is recorded
// as a tool_usage event when the server has a recorder. Rate-limited calls are not
// recorded.
func (s *Server) HandleTool(toolType string, handler http.Handler, methods ...string) {
	if s.recorder != nil {
		handler = TrackToolUsage(s.recorder, toolType, handler)
	}
	if s.ingest != nil {
		handler = s.ingest(handler)
	}
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost}
	}
	s.router.Handle("/api/v1/tools/"+toolType, handler).Methods(methods...)
}

// Router exposes the underlying router for additional routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
