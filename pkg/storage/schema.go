package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS analytics_events (
	id BIGSERIAL PRIMARY KEY,
	session_id VARCHAR(255) NOT NULL,
	event_type VARCHAR(32) NOT NULL,
	tool_type VARCHAR(100),
	target_url TEXT,
	url_hash VARCHAR(64),
	ip_address VARCHAR(45) NOT NULL,
	user_agent TEXT,
	country VARCHAR(100),
	city VARCHAR(255),
	referrer TEXT,
	response_time BIGINT,
	success BOOLEAN NOT NULL DEFAULT TRUE,
	error_message TEXT,
	metadata JSONB,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_analytics_events_created_at ON analytics_events(created_at);
CREATE INDEX IF NOT EXISTS idx_analytics_events_url_hash ON analytics_events(url_hash, created_at);

CREATE TABLE IF NOT EXISTS daily_aggregates (
	day VARCHAR(10) PRIMARY KEY,
	total_analyses BIGINT NOT NULL DEFAULT 0,
	unique_users BIGINT NOT NULL DEFAULT 0,
	unique_ips BIGINT NOT NULL DEFAULT 0,
	tool_usage TEXT NOT NULL DEFAULT '{}',
	top_countries TEXT NOT NULL DEFAULT '[]',
	avg_response_time BIGINT NOT NULL DEFAULT 0,
	success_rate INTEGER NOT NULL DEFAULT 100,
	error_count BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS popular_urls (
	id BIGSERIAL PRIMARY KEY,
	domain VARCHAR(255) NOT NULL,
	full_url TEXT NOT NULL,
	url_hash VARCHAR(64) NOT NULL UNIQUE,
	total_analyses BIGINT NOT NULL DEFAULT 0,
	unique_users BIGINT NOT NULL DEFAULT 0,
	daily_count BIGINT NOT NULL DEFAULT 0,
	weekly_count BIGINT NOT NULL DEFAULT 0,
	monthly_count BIGINT NOT NULL DEFAULT 0,
	last_analyzed TIMESTAMP WITH TIME ZONE NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_popular_urls_total ON popular_urls(total_analyses DESC);

CREATE TABLE IF NOT EXISTS popular_url_tools (
	url_hash VARCHAR(64) NOT NULL,
	tool_type VARCHAR(100) NOT NULL,
	PRIMARY KEY (url_hash, tool_type)
);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analytics_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	tool_type TEXT,
	target_url TEXT,
	url_hash TEXT,
	ip_address TEXT NOT NULL,
	user_agent TEXT,
	country TEXT,
	city TEXT,
	referrer TEXT,
	response_time INTEGER,
	success BOOLEAN NOT NULL DEFAULT 1,
	error_message TEXT,
	metadata TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analytics_events_created_at ON analytics_events(created_at);
CREATE INDEX IF NOT EXISTS idx_analytics_events_url_hash ON analytics_events(url_hash, created_at);

CREATE TABLE IF NOT EXISTS daily_aggregates (
	day TEXT PRIMARY KEY,
	total_analyses INTEGER NOT NULL DEFAULT 0,
	unique_users INTEGER NOT NULL DEFAULT 0,
	unique_ips INTEGER NOT NULL DEFAULT 0,
	tool_usage TEXT NOT NULL DEFAULT '{}',
	top_countries TEXT NOT NULL DEFAULT '[]',
	avg_response_time INTEGER NOT NULL DEFAULT 0,
	success_rate INTEGER NOT NULL DEFAULT 100,
	error_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS popular_urls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	domain TEXT NOT NULL,
	full_url TEXT NOT NULL,
	url_hash TEXT NOT NULL UNIQUE,
	total_analyses INTEGER NOT NULL DEFAULT 0,
	unique_users INTEGER NOT NULL DEFAULT 0,
	daily_count INTEGER NOT NULL DEFAULT 0,
	weekly_count INTEGER NOT NULL DEFAULT 0,
	monthly_count INTEGER NOT NULL DEFAULT 0,
	last_analyzed TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_popular_urls_total ON popular_urls(total_analyses DESC);

CREATE TABLE IF NOT EXISTS popular_url_tools (
	url_hash TEXT NOT NULL,
	tool_type TEXT NOT NULL,
	PRIMARY KEY (url_hash, tool_type)
);
`

// Schema returns the DDL for driver
func Schema(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return postgresSchema, nil
	case DriverSQLite:
		return sqliteSchema, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Migrate creates the analytics tables and indexes when they don't exist
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	schema, err := Schema(driver)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate %s schema: %w", driver, err)
	}

	return nil
}
