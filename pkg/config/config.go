package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/platinummonkey/seotools/pkg/observability"
	"github.com/platinummonkey/seotools/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Dashboard cache configuration
	Cache CacheConfig

	// Analytics pipeline configuration
	Analytics AnalyticsConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// Addr returns host:port for http.Server
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// CacheConfig controls the two-tier dashboard summary cache
type CacheConfig struct {
	Enabled  bool
	LRUSize  int
	TTL      time.Duration
	RedisTTL time.Duration
}

// AnalyticsConfig holds event, aggregation and dashboard settings
type AnalyticsConfig struct {
	// Per-read timeout for dashboard queries; expiry triggers the raw-event fallback
	QueryTimeout time.Duration
	// Timeout for detached event writes issued by tool handlers
	RecordTimeout time.Duration
	// Optional YAML file listing the known tool identifiers
	ToolCatalogPath string
	// Number of popular URLs returned as top domains
	TopDomainsLimit int
	// Maximum concurrent days during a backfill
	BackfillConcurrency int
	// Cron schedules used by the aggregator command
	DailySchedule   string
	HourlySchedule  string
	PopularSchedule string
	// Session cookie lifetime
	SessionMaxAge time.Duration
	// Per-client-IP budget for event and tool calls per minute, 0 disables limiting
	IngestRateLimit int
	IngestBurst     int
	// Optional endpoint receiving signed alert notifications from the aggregator
	AlertWebhookURL    string
	AlertWebhookSecret string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// LoadEnvFiles loads .env style files into the process environment. Missing files are
// skipped; variables already set in the environment win.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Cache:         loadCacheConfig(),
		Analytics:     loadAnalyticsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SEOTOOLS_HOST", "0.0.0.0"),
		Port:            getEnv("SEOTOOLS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SEOTOOLS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SEOTOOLS_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("SEOTOOLS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SEOTOOLS_SHUTDOWN_TIMEOUT", 30*time.Second),
		CORSOrigins:     splitList(getEnv("SEOTOOLS_CORS_ORIGINS", "*")),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if driver := getEnv("SEOTOOLS_DB_DRIVER", ""); driver != "" {
		cfg.Driver = driver
	}
	if dbURL := getEnv("SEOTOOLS_DATABASE_URL", ""); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if replicaURLs := getEnv("SEOTOOLS_DATABASE_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.ReplicaURLs = storage.ParseReplicaURLs(replicaURLs)
	}
	if maxConns := getEnvInt("SEOTOOLS_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("SEOTOOLS_DB_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("SEOTOOLS_DB_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}
	cfg.AutoMigrate = getEnvBool("SEOTOOLS_DB_AUTO_MIGRATE", cfg.AutoMigrate)

	// S3 archive
	cfg.S3Endpoint = getEnv("SEOTOOLS_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getEnv("SEOTOOLS_S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getEnv("SEOTOOLS_S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = getEnv("SEOTOOLS_S3_PREFIX", cfg.S3Prefix)
	cfg.S3AccessKey = getEnv("SEOTOOLS_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("SEOTOOLS_S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3UsePathStyle = getEnvBool("SEOTOOLS_S3_USE_PATH_STYLE", cfg.S3UsePathStyle)

	// Redis
	cfg.RedisURL = getEnv("SEOTOOLS_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("SEOTOOLS_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("SEOTOOLS_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("SEOTOOLS_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("SEOTOOLS_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	return cfg
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:  getEnvBool("SEOTOOLS_CACHE_ENABLED", true),
		LRUSize:  getEnvInt("SEOTOOLS_CACHE_LRU_SIZE", 512),
		TTL:      getEnvDuration("SEOTOOLS_CACHE_TTL", 30*time.Second),
		RedisTTL: getEnvDuration("SEOTOOLS_CACHE_REDIS_TTL", 2*time.Minute),
	}
}

func loadAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		QueryTimeout:        getEnvDuration("SEOTOOLS_QUERY_TIMEOUT", 10*time.Second),
		RecordTimeout:       getEnvDuration("SEOTOOLS_RECORD_TIMEOUT", 5*time.Second),
		ToolCatalogPath:     getEnv("SEOTOOLS_TOOL_CATALOG", ""),
		TopDomainsLimit:     getEnvInt("SEOTOOLS_TOP_DOMAINS_LIMIT", 10),
		BackfillConcurrency: getEnvInt("SEOTOOLS_BACKFILL_CONCURRENCY", 4),
		DailySchedule:       getEnv("SEOTOOLS_DAILY_SCHEDULE", "5 0 * * *"),
		HourlySchedule:      getEnv("SEOTOOLS_HOURLY_SCHEDULE", "15 * * * *"),
		PopularSchedule:     getEnv("SEOTOOLS_POPULAR_SCHEDULE", "30 * * * *"),
		SessionMaxAge:       getEnvDuration("SEOTOOLS_SESSION_MAX_AGE", 30*24*time.Hour),
		IngestRateLimit:     getEnvInt("SEOTOOLS_INGEST_RATE_LIMIT", 120),
		IngestBurst:         getEnvInt("SEOTOOLS_INGEST_BURST", 30),
		AlertWebhookURL:     getEnv("SEOTOOLS_ALERT_WEBHOOK_URL", ""),
		AlertWebhookSecret:  getEnv("SEOTOOLS_ALERT_WEBHOOK_SECRET", ""),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("SEOTOOLS_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("SEOTOOLS_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("SEOTOOLS_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("SEOTOOLS_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("SEOTOOLS_OTEL_SERVICE_NAME", "seotools"),
		OTelServiceVersion: getEnv("SEOTOOLS_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("SEOTOOLS_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("SEOTOOLS_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Storage.Driver {
	case storage.DriverPostgres, storage.DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Storage.Driver)
	}
	if c.Storage.DatabaseURL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Analytics.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}
	if c.Analytics.RecordTimeout <= 0 {
		return fmt.Errorf("record timeout must be positive")
	}
	if c.Analytics.TopDomainsLimit < 1 {
		return fmt.Errorf("top domains limit must be at least 1")
	}
	if c.Analytics.BackfillConcurrency < 1 {
		return fmt.Errorf("backfill concurrency must be at least 1")
	}
	if c.Analytics.IngestRateLimit < 0 || c.Analytics.IngestBurst < 0 {
		return fmt.Errorf("ingest rate limit and burst must not be negative")
	}

	if c.Cache.Enabled && c.Cache.LRUSize < 1 {
		return fmt.Errorf("cache LRU size must be at least 1 when the cache is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
