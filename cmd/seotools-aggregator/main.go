package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/seotools/pkg/analytics"
	"github.com/platinummonkey/seotools/pkg/cache"
	"github.com/platinummonkey/seotools/pkg/config"
	"github.com/platinummonkey/seotools/pkg/observability"
	"github.com/platinummonkey/seotools/pkg/storage"
	"github.com/platinummonkey/seotools/pkg/webhooks"
)

var (
	envFile       = flag.String("env-file", ".env", "Path to a .env file (skipped when missing)")
	alertSchedule = flag.String("alert-schedule", "0 */6 * * *", "Cron schedule for alert checks (default: every 6 hours)")
	jobTimeout    = flag.Duration("job-timeout", 10*time.Minute, "Upper bound for a single scheduled job")
	runOnce       = flag.Bool("run-once", false, "Run aggregation once and exit")
	aggregateDate = flag.String("date", "", "Date to aggregate (YYYY-MM-DD). If empty, aggregates yesterday. Only used with --run-once")
	backfillFrom  = flag.String("from", "", "First day of a backfill (YYYY-MM-DD), requires --to")
	backfillTo    = flag.String("to", "", "Last day of a backfill (YYYY-MM-DD), inclusive")
)

func main() {
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

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "seotools-aggregator")
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Aggregator exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName + "-aggregator",
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}
	defer providers.Shutdown(context.Background())

	store, err := storage.NewConnectionManager(cfg.Storage.ConnectionConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to open analytics store: %w", err)
	}
	defer store.Close()

	if cfg.Storage.AutoMigrate {
		if err := storage.Migrate(ctx, store.Primary(), store.Driver()); err != nil {
			return err
		}
	}

	tools, err := analytics.LoadToolCatalog(cfg.Analytics.ToolCatalogPath)
	if err != nil {
		return err
	}

	aggregator := analytics.NewAggregator(store.Primary(), tools, logger, nil)
	if cfg.Storage.S3Bucket != "" {
		archiver, err := storage.NewS3Archiver(ctx, cfg.Storage)
		if err != nil {
			logger.WithError(err).Warn("S3 archive unavailable, aggregates will not be archived")
		} else {
			aggregator.SetArchiver(archiver)
		}
	}

	alerter := analytics.NewAlerter(store.Primary(), logger)
	if cfg.Analytics.AlertWebhookURL != "" {
		alerter.SetNotifier(webhooks.NewNotifier(cfg.Analytics.AlertWebhookURL, cfg.Analytics.AlertWebhookSecret, logger))
	}

	j := &jobs{
		aggregator:  aggregator,
		popular:     analytics.NewPopularURLIndex(store.Primary(), nil),
		alerter:     alerter,
		logger:      logger,
		concurrency: cfg.Analytics.BackfillConcurrency,
		timeout:     *jobTimeout,
		now:         time.Now,
	}
	if cfg.Cache.Enabled && cfg.Storage.RedisURL != "" {
		client, err := cache.NewRedisClient(cfg.Storage)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, shared dashboard cache will expire on its own")
		} else {
			j.cache = cache.NewRedisCache(client, "seotools", cfg.Cache.RedisTTL, nil)
			defer j.cache.Close()
		}
	}

	// Backfill mode
	if *backfillFrom != "" || *backfillTo != "" {
		if *backfillFrom == "" || *backfillTo == "" {
			return fmt.Errorf("--from and --to must be given together")
		}
		from, err := analytics.ParseDay(*backfillFrom, time.Now())
		if err != nil {
			return err
		}
		to, err := analytics.ParseDay(*backfillTo, time.Now())
		if err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{"from": *backfillFrom, "to": *backfillTo}).Info("Starting backfill")
		return j.backfill(ctx, from, to)
	}

	// Run once mode
	if *runOnce {
		day := analytics.StartOfDay(time.Now()).AddDate(0, 0, -1)
		if *aggregateDate != "" {
			if day, err = analytics.ParseDay(*aggregateDate, time.Now()); err != nil {
				return err
			}
		}
		logger.WithField("date", day.Format(analytics.DayLayout)).Info("Running aggregation")
		return j.aggregateDay(ctx, day)
	}

	// Scheduled mode
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	schedules := []struct {
		name     string
		schedule string
		job      func()
	}{
		{"daily aggregation", cfg.Analytics.DailySchedule, j.runDaily},
		{"hourly aggregation", cfg.Analytics.HourlySchedule, j.runHourly},
		{"popular url refresh", cfg.Analytics.PopularSchedule, j.runPopularRefresh},
		{"alert checks", *alertSchedule, j.runAlerts},
	}
	for _, s := range schedules {
		if _, err := c.AddFunc(s.schedule, s.job); err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", s.name, s.schedule, err)
		}
		logger.WithField("schedule", s.schedule).Infof("Scheduled %s", s.name)
	}

	c.Start()
	logger.Info("seotools analytics aggregator started")

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
	logger.Info("Shutting down gracefully...")

	// Let running jobs finish
	<-c.Stop().Done()

	logger.Info("Aggregator stopped")
	return nil
}
