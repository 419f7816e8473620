// Package middleware provides ingest rate limiting for the analytics API.
//
// Event and tool endpoints are public, so each client IP gets a request budget.
// RateLimiter keeps token buckets in process; DistributedRateLimiter keeps a fixed
// window counter in Redis so the budget is shared across replicas.
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, cfg, "")
//	handler = middleware.RateLimitMiddleware(limiter, logger)(handler)
//
// Limiter errors fail open: a Redis outage never blocks event ingestion.
package middleware
