package main

import (
	"context"
	"time"

	"github.com/platinummonkey/seotools/pkg/analytics"
	"github.com/platinummonkey/seotools/pkg/cache"
	"github.com/platinummonkey/seotools/pkg/observability"
)

const (
	missingLookbackDays = 7
	dashboardPrefix     = "dashboard:"
)

// jobs holds the scheduled work of the aggregator process
type jobs struct {
	aggregator  *analytics.Aggregator
	popular     *analytics.PopularURLIndex
	alerter     *analytics.Alerter
	cache       cache.Cache // shared dashboard cache to invalidate, may be nil
	logger      *observability.Logger
	concurrency int
	timeout     time.Duration
	now         func() time.Time
}

func (j *jobs) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), j.timeout)
}

// aggregateDay recomputes one day and drops cached dashboards on success. The
// aggregator logs the outcome.
func (j *jobs) aggregateDay(ctx context.Context, day time.Time) error {
	if _, err := j.aggregator.AggregateDaily(ctx, day); err != nil {
		return err
	}
	j.invalidate(ctx)
	return nil
}

// backfill aggregates [from, to] with bounded concurrency
func (j *jobs) backfill(ctx context.Context, from, to time.Time) error {
	err := j.aggregator.Backfill(ctx, from, to, j.concurrency)
	j.invalidate(ctx)
	return err
}

// Yesterday is final once the day has rolled over
func (j *jobs) runDaily() {
	defer observability.RecoverPanic(j.logger, "aggregate yesterday")
	ctx, cancel := j.context()
	defer cancel()

	_ = j.aggregateDay(ctx, analytics.StartOfDay(j.now()).AddDate(0, 0, -1))
}

// Today is refreshed hourly so dashboards read from aggregates intraday
func (j *jobs) runHourly() {
	defer observability.RecoverPanic(j.logger, "aggregate today")
	ctx, cancel := j.context()
	defer cancel()

	_ = j.aggregateDay(ctx, j.now())
}

func (j *jobs) runPopularRefresh() {
	defer observability.RecoverPanic(j.logger, "refresh popular urls")
	ctx, cancel := j.context()
	defer cancel()

	rows, err := j.popular.RefreshWindows(ctx, j.now())
	if err != nil {
		j.logger.WithError(err).Error("Failed to refresh popular URL windows")
		return
	}
	j.logger.WithField("rows", rows).Info("Popular URL windows refreshed")
}

// runAlerts logs alert conditions and backfills any recent day missing its aggregate
func (j *jobs) runAlerts() {
	defer observability.RecoverPanic(j.logger, "analytics alerts")
	ctx, cancel := j.context()
	defer cancel()

	missing := j.alerter.CheckAllAlerts(ctx, j.now())
	for _, date := range missing {
		day, err := analytics.ParseDay(date, j.now())
		if err != nil {
			continue
		}
		_ = j.aggregateDay(ctx, day)
	}
}

func (j *jobs) invalidate(ctx context.Context) {
	if j.cache == nil {
		return
	}
	if err := j.cache.InvalidatePrefix(ctx, dashboardPrefix); err != nil {
		j.logger.WithError(err).Warn("Failed to invalidate shared dashboard cache")
	}
}

// cronLogger adapts the structured logger to cron's logging interface
type cronLogger struct {
	logger *observability.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(kvFields(keysAndValues)).Error("cron: " + msg)
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}
