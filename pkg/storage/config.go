package storage

import "time"

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config for the analytics store and its optional sidecars (Redis cache, S3 archive)
type Config struct {
	Driver string // "postgres" or "sqlite3"

	// Relational store
	DatabaseURL string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	AutoMigrate bool

	// S3 aggregate archive (disabled when S3Bucket is empty)
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3Prefix       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		DatabaseURL:     "file:seotools.db?_busy_timeout=5000&_journal_mode=WAL",
		MaxConns:        20,
		MinConns:        2,
		Timeout:         10 * time.Second,
		MaxLifetime:     30 * time.Minute,
		MaxIdleTime:     5 * time.Minute,
		AutoMigrate:     true,
		S3Region:        "us-east-1",
		S3Prefix:        "daily-aggregates",
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
	}
}

// ConnectionConfig derives the pool settings for NewConnectionManager
func (c Config) ConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Driver:      c.Driver,
		PrimaryURL:  c.DatabaseURL,
		ReplicaURLs: c.ReplicaURLs,
		MaxConns:    c.MaxConns,
		MinConns:    c.MinConns,
		Timeout:     c.Timeout,
		MaxLifetime: c.MaxLifetime,
		MaxIdleTime: c.MaxIdleTime,
	}
}
