package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/seotools/pkg/observability"
	"github.com/platinummonkey/seotools/pkg/storage"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("SEOTOOLS_TEST_STR", "custom")
	t.Setenv("SEOTOOLS_TEST_BOOL", "1")
	t.Setenv("SEOTOOLS_TEST_INT", "42")
	t.Setenv("SEOTOOLS_TEST_BAD_INT", "forty-two")
	t.Setenv("SEOTOOLS_TEST_DURATION", "1500ms")
	t.Setenv("SEOTOOLS_TEST_FLOAT", "0.25")

	assert.Equal(t, "custom", getEnv("SEOTOOLS_TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("SEOTOOLS_TEST_UNSET", "default"))
	assert.True(t, getEnvBool("SEOTOOLS_TEST_BOOL", false))
	assert.True(t, getEnvBool("SEOTOOLS_TEST_UNSET", true))
	assert.Equal(t, 42, getEnvInt("SEOTOOLS_TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("SEOTOOLS_TEST_BAD_INT", 7))
	assert.Equal(t, 1500*time.Millisecond, getEnvDuration("SEOTOOLS_TEST_DURATION", 0))
	assert.Equal(t, 0.25, getEnvFloat("SEOTOOLS_TEST_FLOAT", 1))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, storage.DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 10*time.Second, cfg.Analytics.QueryTimeout)
	assert.Equal(t, 10, cfg.Analytics.TopDomainsLimit)
	assert.Equal(t, 30*24*time.Hour, cfg.Analytics.SessionMaxAge)
	assert.Equal(t, "5 0 * * *", cfg.Analytics.DailySchedule)
	assert.Equal(t, 120, cfg.Analytics.IngestRateLimit)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("SEOTOOLS_PORT", "9000")
	t.Setenv("SEOTOOLS_DB_DRIVER", "postgres")
	t.Setenv("SEOTOOLS_DATABASE_URL", "postgres://seo:seo@db:5432/seotools?sslmode=disable")
	t.Setenv("SEOTOOLS_DATABASE_REPLICA_URLS", "postgres://r1/seotools, postgres://r2/seotools")
	t.Setenv("SEOTOOLS_S3_BUCKET", "aggregates")
	t.Setenv("SEOTOOLS_S3_USE_PATH_STYLE", "true")
	t.Setenv("SEOTOOLS_REDIS_URL", "redis://cache:6379/0")
	t.Setenv("SEOTOOLS_QUERY_TIMEOUT", "12s")
	t.Setenv("SEOTOOLS_LOG_LEVEL", "debug")
	t.Setenv("SEOTOOLS_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, storage.DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, []string{"postgres://r1/seotools", "postgres://r2/seotools"}, cfg.Storage.ReplicaURLs)
	assert.Equal(t, "aggregates", cfg.Storage.S3Bucket)
	assert.True(t, cfg.Storage.S3UsePathStyle)
	assert.Equal(t, "redis://cache:6379/0", cfg.Storage.RedisURL)
	assert.Equal(t, 12*time.Second, cfg.Analytics.QueryTimeout)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: "8080"},
			Storage: storage.DefaultConfig(),
			Cache:   CacheConfig{Enabled: true, LRUSize: 10},
			Analytics: AnalyticsConfig{
				QueryTimeout:        time.Second,
				RecordTimeout:       time.Second,
				TopDomainsLimit:     10,
				BackfillConcurrency: 1,
			},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "mysql" }, "invalid database driver"},
		{"missing url", func(c *Config) { c.Storage.DatabaseURL = "" }, "database URL"},
		{"zero query timeout", func(c *Config) { c.Analytics.QueryTimeout = 0 }, "query timeout"},
		{"zero record timeout", func(c *Config) { c.Analytics.RecordTimeout = 0 }, "record timeout"},
		{"zero top domains", func(c *Config) { c.Analytics.TopDomainsLimit = 0 }, "top domains"},
		{"zero backfill", func(c *Config) { c.Analytics.BackfillConcurrency = 0 }, "backfill"},
		{"negative ingest limit", func(c *Config) { c.Analytics.IngestRateLimit = -1 }, "ingest rate limit"},
		{"empty lru", func(c *Config) { c.Cache.LRUSize = 0 }, "LRU size"},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelServiceName = "seotools"
		}, "endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SEOTOOLS_DOTENV_TEST=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SEOTOOLS_DOTENV_TEST") })

	require.NoError(t, LoadEnvFiles(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "from-file", os.Getenv("SEOTOOLS_DOTENV_TEST"))
}
