// Package api provides the HTTP surface of the SEO tools analytics pipeline.
//
// # Endpoints
//
//	POST /api/v1/analytics/events              record one event (202)
//	GET  /api/v1/analytics/dashboard?days=N    windowed dashboard summary
//	GET  /api/v1/analytics/dashboard/export    CSV or JSON download (days, format)
//	POST /api/v1/analytics/aggregate?date=D    recompute one day's aggregate
//	GET  /api/v1/analytics/popular?limit=N     most analyzed URLs
//	GET  /health, /health/live, /health/ready  health checks
//	GET  /metrics                              Prometheus metrics
//
// # Sessions
//
// SessionMiddleware assigns every visitor an anonymous session ID kept in the
// seo_session cookie. Events posted without a sessionId inherit it.
//
// # Rate limiting
//
// When ServerConfig.IngestLimiter is set, event posts and tool calls share a per-client-IP
// budget and excess requests get 429. Dashboard reads are not limited.
//
// # Tool tracking
//
// Tool endpoints are wrapped with TrackToolUsage so each call records a tool_usage
// event with its response time and outcome:
//
//	server := api.NewServer(api.ServerConfig{...})
//	server.HandleTool("meta-tags", metaTagsHandler)
//	http.ListenAndServe(":8080", server)
package api
