package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/seotools/pkg/cache"
	"github.com/platinummonkey/seotools/pkg/observability"
	"github.com/platinummonkey/seotools/pkg/storage"
)

const (
	// MinDashboardDays and MaxDashboardDays bound the dashboard window
	MinDashboardDays = 1
	MaxDashboardDays = 365

	dashboardCachePrefix = "dashboard:"
)

var (
	errAggregatesMissing = errors.New("daily aggregates table is not provisioned")
	errNoAggregates      = errors.New("no daily aggregates in window")
)

// ServiceConfig tunes the dashboard query service
type ServiceConfig struct {
	// QueryTimeout bounds each individual store read
	QueryTimeout    time.Duration
	TopDomainsLimit int
	CacheTTL        time.Duration
	Tools           []string
}

// Service serves the windowed dashboard summary. It prefers the daily_aggregates table
// and degrades to recomputing from raw events when aggregates are missing, empty or
// unreachable.
type Service struct {
	db      *sql.DB
	reader  ReaderFunc
	popular *PopularURLIndex
	cache   cache.Cache
	config  ServiceConfig
	logger  *observability.Logger
	metrics *observability.Metrics
	group   singleflight.Group
	now     func() time.Time
}

// NewService creates a dashboard service reading from db. cache may be nil.
func NewService(db *sql.DB, popular *PopularURLIndex, c cache.Cache, config ServiceConfig, logger *observability.Logger, metrics *observability.Metrics) *Service {
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 10 * time.Second
	}
	if config.TopDomainsLimit <= 0 {
		config.TopDomainsLimit = 10
	}
	if len(config.Tools) == 0 {
		config.Tools = DefaultTools
	}
	return &Service{
		db:      db,
		popular: popular,
		cache:   c,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// WithReader serves dashboard reads from the handle reader returns for each query. A
// read that fails there is retried once on the service's own database before the
// dashboard degrades.
func (s *Service) WithReader(reader ReaderFunc) *Service {
	s.reader = reader
	return s
}

// ValidateDays rejects windows outside [MinDashboardDays, MaxDashboardDays]
func ValidateDays(days int) error {
	if days < MinDashboardDays || days > MaxDashboardDays {
		return &ValidationError{
			Field:   "days",
			Message: fmt.Sprintf("must be between %d and %d, got %d", MinDashboardDays, MaxDashboardDays, days),
		}
	}
	return nil
}

// GetDashboardStats returns the summary for the days UTC dates ending today. The only
// error it returns is a *ValidationError; store failures degrade the result instead.
func (s *Service) GetDashboardStats(ctx context.Context, days int) (*DashboardSummary, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "analytics.GetDashboardStats")
	defer span.End()
	span.SetAttributes(attribute.Int("dashboard.days", days))

	began := time.Now()
	key := fmt.Sprintf("%s%d", dashboardCachePrefix, days)

	if summary, ok := s.cached(ctx, key); ok {
		s.metrics.RecordDashboard("cache", time.Since(began))
		span.SetAttributes(attribute.String("dashboard.source", "cache"))
		return summary, nil
	}

	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		summary := s.buildSummary(context.WithoutCancel(ctx), days)
		if summary.Source != SourceUnavailable {
			s.store(ctx, key, summary)
		}
		return summary, nil
	})
	summary := *v.(*DashboardSummary)

	s.metrics.RecordDashboard(summary.Source, time.Since(began))
	span.SetAttributes(
		attribute.String("dashboard.source", summary.Source),
		attribute.Bool("dashboard.fallback", summary.IsRealtimeFallback),
	)
	return &summary, nil
}

// InvalidateCache drops every cached dashboard window
func (s *Service) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidatePrefix(ctx, dashboardCachePrefix)
}

func (s *Service) cached(ctx context.Context, key string) (*DashboardSummary, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WithError(err).WithField("key", key).Warn("Dashboard cache read failed")
		}
		return nil, false
	}
	var summary DashboardSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Discarding undecodable dashboard cache entry")
		return nil, false
	}
	return &summary, true
}

func (s *Service) store(ctx context.Context, key string, summary *DashboardSummary) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err == nil {
		err = s.cache.Set(ctx, key, data, s.config.CacheTTL)
	}
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Dashboard cache write failed")
	}
}

func (s *Service) buildSummary(ctx context.Context, days int) *DashboardSummary {
	now := s.now().UTC()
	dates := WindowDates(days, now)

	summary, err := s.fromAggregates(ctx, dates)
	if err == nil {
		return summary
	}
	s.logger.WithError(err).WithField("days", days).Warn("Aggregates unavailable, computing dashboard from raw events")

	summary, err = s.fromEvents(ctx, dates)
	if err == nil {
		return summary
	}
	s.logger.WithError(err).WithField("days", days).Error("Raw event fallback failed, returning empty dashboard")

	return emptySummary(dates, now)
}

func (s *Service) fromAggregates(ctx context.Context, dates []string) (*DashboardSummary, error) {
	var rows []DailyAggregate
	readCtx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	err := readThrough(readCtx, s.db, s.reader, func(db *sql.DB) error {
		var err error
		rows, err = loadAggregates(readCtx, db, dates[0], dates[len(dates)-1])
		return err
	})
	cancel()
	if err != nil {
		if storage.IsMissingTable(err) {
			return nil, fmt.Errorf("%w: %v", errAggregatesMissing, err)
		}
		return nil, &PersistenceError{Op: "read aggregates", Err: err}
	}
	if len(rows) == 0 {
		return nil, errNoAggregates
	}

	var topDomains []PopularURL
	if s.popular != nil {
		topCtx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
		topDomains, err = s.popular.Top(topCtx, s.config.TopDomainsLimit)
		cancel()
		if err != nil {
			return nil, &PersistenceError{Op: "read top domains", Err: err}
		}
	}

	perDay := make(map[string]DailyAggregate, len(rows))
	for _, row := range rows {
		perDay[row.Date] = row
	}

	summary := summarize(dates, perDay, s.config.Tools, s.now())
	summary.TopDomains = topDomains
	if summary.TopDomains == nil {
		summary.TopDomains = []PopularURL{}
	}
	summary.Source = SourceAggregates
	return summary, nil
}

func (s *Service) fromEvents(ctx context.Context, dates []string) (*DashboardSummary, error) {
	start, err := ParseDay(dates[0], time.Time{})
	if err != nil {
		return nil, err
	}
	end, err := ParseDay(dates[len(dates)-1], time.Time{})
	if err != nil {
		return nil, err
	}

	var events []Event
	readCtx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	err = readThrough(readCtx, s.db, s.reader, func(db *sql.DB) error {
		var err error
		events, err = queryEvents(readCtx, db, start, end.AddDate(0, 0, 1))
		return err
	})
	cancel()
	if err != nil {
		return nil, &PersistenceError{Op: "read events", Err: err}
	}

	perDay := make(map[string]DailyAggregate)
	for day, bucket := range bucketByDay(events) {
		perDay[day] = ComputeAggregate(day, bucket, s.config.Tools)
	}

	summary := summarize(dates, perDay, s.config.Tools, s.now())
	summary.TopDomains = []PopularURL{}
	summary.IsRealtimeFallback = true
	summary.Source = SourceRealtime
	return summary, nil
}

// summarize folds per-day aggregates into the dashboard shape. Dates without an entry
// are zero-filled in DailyStats and excluded from the response-time mean.
func summarize(dates []string, perDay map[string]DailyAggregate, tools []string, now time.Time) *DashboardSummary {
	summary := &DashboardSummary{
		Days:        len(dates),
		StartDate:   dates[0],
		EndDate:     dates[len(dates)-1],
		DailyStats:  make([]DailyStat, 0, len(dates)),
		ToolStats:   make(map[string]int64, len(tools)),
		GeneratedAt: now.UTC(),
	}
	for _, tool := range tools {
		summary.ToolStats[tool] = 0
	}

	var avgTotal float64
	var avgDays int
	for _, date := range dates {
		agg, ok := perDay[date]
		if !ok {
			summary.DailyStats = append(summary.DailyStats, DailyStat{Date: date, SuccessRate: 100})
			continue
		}

		summary.TotalAnalyses += agg.TotalAnalyses
		summary.TotalUsers += agg.UniqueUsers
		avgTotal += float64(agg.AvgResponseTime)
		avgDays++
		for tool, count := range agg.ToolUsage {
			summary.ToolStats[tool] += count
		}

		summary.DailyStats = append(summary.DailyStats, DailyStat{
			Date:            date,
			TotalAnalyses:   agg.TotalAnalyses,
			UniqueUsers:     agg.UniqueUsers,
			AvgResponseTime: agg.AvgResponseTime,
			SuccessRate:     agg.SuccessRate,
			ErrorCount:      agg.ErrorCount,
		})
	}

	if avgDays > 0 {
		summary.AvgResponseTime = int64(math.Round(avgTotal / float64(avgDays)))
	}
	return summary
}

func emptySummary(dates []string, now time.Time) *DashboardSummary {
	return &DashboardSummary{
		Days:               len(dates),
		StartDate:          dates[0],
		EndDate:            dates[len(dates)-1],
		DailyStats:         []DailyStat{},
		ToolStats:          map[string]int64{},
		TopDomains:         []PopularURL{},
		IsRealtimeFallback: true,
		Source:             SourceUnavailable,
		GeneratedAt:        now.UTC(),
	}
}
