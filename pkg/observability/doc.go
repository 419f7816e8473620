// Package observability provides structured logging, Prometheus metrics, OpenTelemetry
// tracing, health checks and graceful shutdown for the seotools services.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("date", "2026-10-18").Info("aggregation complete")
//
// Request-scoped loggers carry the request and session IDs:
//
//	observability.FromContext(r.Context()).WithError(err).Warn("event dropped")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordEvent("tool_usage", nil)
//	metrics.RecordDashboard("realtime", elapsed)
//
// The Record* helpers are safe on a nil *Metrics so components can run without them.
// When OpenTelemetry is enabled, AttachOTel mirrors the same counts to the OTLP collector.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	checker.AddOptionalCheck("s3", archiver.HealthCheck)
//	observability.RegisterHealthRoutes(router, checker)
//
// The database is required; Redis and optional checks only degrade readiness.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "seotools",
//		Insecure:    true,
//	}, logger)
//	shutdown.RegisterShutdownFunc(providers.Shutdown)
package observability
