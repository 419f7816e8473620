package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/seotools/pkg/analytics"
	"github.com/platinummonkey/seotools/pkg/api"
	"github.com/platinummonkey/seotools/pkg/cache"
	"github.com/platinummonkey/seotools/pkg/config"
	"github.com/platinummonkey/seotools/pkg/middleware"
	"github.com/platinummonkey/seotools/pkg/observability"
	"github.com/platinummonkey/seotools/pkg/storage"
)

var version = "dev"

func main() {
	envFile := flag.String("env-file", ".env", "Path to a .env file (skipped when missing)")
	flag.Parse()

	if err := config.LoadEnvFiles(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "seotools-api")
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)
	if providers != nil {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			return err
		}
		metrics.AttachOTel(otelMetrics)
	}

	store, err := storage.NewConnectionManager(cfg.Storage.ConnectionConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to open analytics store: %w", err)
	}
	if cfg.Storage.AutoMigrate {
		if err := storage.Migrate(ctx, store.Primary(), store.Driver()); err != nil {
			store.Close()
			return err
		}
	}
	if store.ReplicaCount() > 0 {
		store.StartHealthCheckRoutine(ctx, 30*time.Second)
	}
	logger.WithFields(map[string]interface{}{
		"driver":   store.Driver(),
		"replicas": store.ReplicaCount(),
	}).Info("Analytics store ready")

	tools, err := analytics.LoadToolCatalog(cfg.Analytics.ToolCatalogPath)
	if err != nil {
		store.Close()
		return err
	}

	dashboardCache, redisClient := buildCache(cfg, metrics, logger)

	popular := analytics.NewPopularURLIndex(store.Primary(), metrics).WithReader(store.Replica)
	tracker := analytics.NewEventTracker(store.Primary(), popular, logger, metrics)
	aggregator := analytics.NewAggregator(store.Primary(), tools, logger, metrics)
	service := analytics.NewService(store.Primary(), popular, dashboardCache, analytics.ServiceConfig{
		QueryTimeout:    cfg.Analytics.QueryTimeout,
		TopDomainsLimit: cfg.Analytics.TopDomainsLimit,
		CacheTTL:        cfg.Cache.RedisTTL,
		Tools:           tools,
	}, logger, metrics).WithReader(store.Replica)
	recorder := analytics.NewRecorder(tracker, logger, cfg.Analytics.RecordTimeout)

	health := observability.NewHealthChecker(store.Primary(), redisClient, version)
	if cfg.Storage.S3Bucket != "" {
		archiver, err := storage.NewS3Archiver(ctx, cfg.Storage)
		if err != nil {
			logger.WithError(err).Warn("S3 archive unavailable, on-demand aggregates will not be archived")
		} else {
			aggregator.SetArchiver(archiver)
			health.AddOptionalCheck("s3", archiver.HealthCheck)
		}
	}

	serverCfg := api.ServerConfig{
		Tracker:       tracker,
		Dashboard:     service,
		Aggregator:    aggregator,
		Popular:       popular,
		Recorder:      recorder,
		Logger:        logger,
		Health:        health,
		ServiceName:   cfg.Observability.OTelServiceName,
		CORSOrigins:   cfg.Server.CORSOrigins,
		SessionMaxAge: cfg.Analytics.SessionMaxAge,
	}
	if cfg.Analytics.IngestRateLimit > 0 {
		limits := &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Analytics.IngestRateLimit,
			WindowDuration:    time.Minute,
			BurstSize:         cfg.Analytics.IngestBurst,
		}
		if redisClient != nil {
			serverCfg.IngestLimiter = middleware.NewDistributedRateLimiter(redisClient, limits, "")
		} else {
			local := middleware.NewRateLimiter(limits)
			local.StartCleanup(ctx)
			serverCfg.IngestLimiter = local
		}
	}
	if cfg.Observability.MetricsEnabled {
		serverCfg.Registry = registry
		serverCfg.Metrics = metrics
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewServer(serverCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	// Shutdown funcs run concurrently, so draining writes and closing the store share one
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		recorder.Wait()
		cancel()
		var errs []error
		if dashboardCache != nil {
			errs = append(errs, dashboardCache.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	})
	if providers != nil {
		shutdown.RegisterShutdownFunc(providers.Shutdown)
	}

	go reportPoolStats(ctx, store, metrics, logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("Starting seotools analytics API")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	waitCtx, stopWait := context.WithCancel(context.Background())
	defer stopWait()
	go func() {
		if err := <-serverErr; err != nil {
			logger.WithError(err).Error("HTTP server failed")
			stopWait()
		}
	}()

	return shutdown.WaitForShutdown(waitCtx)
}

// buildCache layers the in-process LRU over Redis when a Redis URL is configured. A
// Redis outage at startup degrades to the LRU alone.
func buildCache(cfg *config.Config, metrics *observability.Metrics, logger *observability.Logger) (cache.Cache, *redis.Client) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	l1 := cache.NewMemoryCache(cfg.Cache.LRUSize, cfg.Cache.TTL, metrics)
	if cfg.Storage.RedisURL == "" {
		return cache.NewMultiLevelCache(l1, nil), nil
	}

	client, err := cache.NewRedisClient(cfg.Storage)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, dashboard cache is process-local")
		return cache.NewMultiLevelCache(l1, nil), nil
	}
	return cache.NewMultiLevelCache(l1, cache.NewRedisCache(client, "seotools", cfg.Cache.RedisTTL, metrics)), client
}

func reportPoolStats(ctx context.Context, store *storage.ConnectionManager, metrics *observability.Metrics, logger *observability.Logger) {
	defer observability.RecoverPanic(logger, "report pool stats")

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBStats(store.Primary().Stats())
		case <-ctx.Done():
			return
		}
	}
}
