// Package analytics records tool telemetry and rolls it up for the SEO tools dashboard.
//
// # Overview
//
// Tool handlers append immutable events through EventTracker (usually via Recorder, which
// detaches the write from the request and never fails the caller). tool_usage events
// with a target URL also update the PopularURLIndex, keyed by the SHA-256 of the
// normalized URL.
//
// The Aggregator rolls one UTC day of events into a daily_aggregates row. Rows are
// upserted on the day key, so re-running a day replaces it:
//
//	agg, err := aggregator.AggregateDaily(ctx, day)
//	var aggErr *analytics.AggregationError
//	if errors.As(err, &aggErr) {
//		log.Printf("backfill %s later: %v", aggErr.Date, aggErr.Err)
//	}
//
// # Dashboard
//
// Service.GetDashboardStats serves a window of 1 to 365 days ending today. It reads the
// aggregate rows and the top popular URLs, each under its own timeout. When the
// aggregate table is missing, empty for the window, or unreachable, it recomputes the
// same shape from raw events with ComputeAggregate and marks the result with
// IsRealtimeFallback. If both paths fail it returns an empty summary with Source
// "unavailable" rather than an error.
//
//	summary, err := service.GetDashboardStats(ctx, 30)
//	if err != nil {
//		// only *ValidationError
//	}
//	if summary.IsRealtimeFallback {
//		// render the live-estimate banner
//	}
//
// # Days
//
// All day boundaries are UTC. A day is the half-open slice [00:00, next 00:00).
//
// # Related Packages
//
//   - pkg/storage: schema, connections and the S3 aggregate archive
//   - pkg/cache: dashboard cache tiers
//   - pkg/observability: logging, metrics and tracing
package analytics
