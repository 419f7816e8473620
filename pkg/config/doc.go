// Package config loads seotools configuration from environment variables, optionally
// seeded from .env files.
//
// # Configuration Structure
//
// Server settings:
//
//	SEOTOOLS_HOST="0.0.0.0"
//	SEOTOOLS_PORT="8080"
//	SEOTOOLS_CORS_ORIGINS="*"
//
// Storage settings:
//
//	SEOTOOLS_DB_DRIVER="postgres"            # postgres or sqlite3
//	SEOTOOLS_DATABASE_URL="postgres://..."
//	SEOTOOLS_DATABASE_REPLICA_URLS="postgres://r1,...,postgres://rN"
//	SEOTOOLS_S3_BUCKET="seotools-aggregates" # empty disables the archive
//	SEOTOOLS_REDIS_URL="redis://localhost:6379/0"
//
// Analytics settings:
//
//	SEOTOOLS_QUERY_TIMEOUT="10s"   # per dashboard read; expiry falls back to raw events
//	SEOTOOLS_RECORD_TIMEOUT="5s"   # detached event writes
//	SEOTOOLS_TOOL_CATALOG="tools.yaml"
//	SEOTOOLS_DAILY_SCHEDULE="5 0 * * *"
//	SEOTOOLS_INGEST_RATE_LIMIT="120"  # per client IP per minute, 0 disables
//	SEOTOOLS_ALERT_WEBHOOK_URL="https://ops.example.com/hooks/seotools"
//
// Observability settings:
//
//	SEOTOOLS_LOG_LEVEL="info"
//	SEOTOOLS_OTEL_ENABLED="false"
//	SEOTOOLS_OTEL_ENDPOINT="localhost:4317"
//
// # Usage
//
//	if err := config.LoadEnvFiles(); err != nil {
//		log.Fatal(err)
//	}
//	cfg, err := config.LoadConfig()
package config
