package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/seotools/pkg/observability"
)

// maxBackfillDays bounds a single backfill request
const maxBackfillDays = 3660

// Archiver receives a copy of every aggregate written
type Archiver interface {
	ArchiveDaily(ctx context.Context, day string, data []byte) error
}

// Aggregator rolls one UTC day of raw events into a daily_aggregates row
type Aggregator struct {
	db       *sql.DB
	tools    []string
	logger   *observability.Logger
	metrics  *observability.Metrics
	archiver Archiver
}

// NewAggregator creates an aggregator over db. tools seeds the per-tool counters.
func NewAggregator(db *sql.DB, tools []string, logger *observability.Logger, metrics *observability.Metrics) *Aggregator {
	if len(tools) == 0 {
		tools = DefaultTools
	}
	return &Aggregator{
		db:      db,
		tools:   tools,
		logger:  logger,
		metrics: metrics,
	}
}

// SetArchiver enables archiving of written aggregates. Archive failures are logged and
// do not fail the aggregation.
func (a *Aggregator) SetArchiver(archiver Archiver) {
	a.archiver = archiver
}

// AggregateDaily computes and upserts the aggregate for the UTC day containing day.
// Re-running for the same day replaces the row. On failure nothing is written and the
// returned *AggregationError carries the date.
func (a *Aggregator) AggregateDaily(ctx context.Context, day time.Time) (agg *DailyAggregate, err error) {
	start, end := DayBounds(day)
	key := start.Format(DayLayout)

	ctx, span := tracer.Start(ctx, "analytics.AggregateDaily")
	defer span.End()
	span.SetAttributes(attribute.String("aggregate.day", key))

	began := time.Now()
	scanned := 0
	defer func() {
		a.metrics.RecordAggregation(time.Since(began), scanned, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			a.logger.WithError(err).WithField("date", key).Error("Daily aggregation failed")
		}
	}()

	events, err := queryEvents(ctx, a.db, start, end)
	if err != nil {
		return nil, &AggregationError{Date: key, Op: "read events", Err: err}
	}
	scanned = len(events)

	computed := ComputeAggregate(key, events, a.tools)
	now := time.Now().UTC().Truncate(time.Microsecond)
	computed.UpdatedAt = now

	if err := a.upsert(ctx, computed); err != nil {
		return nil, &AggregationError{Date: key, Op: "write aggregate", Err: err}
	}

	a.logger.WithFields(map[string]interface{}{
		"date":           key,
		"events":         scanned,
		"total_analyses": computed.TotalAnalyses,
		"unique_users":   computed.UniqueUsers,
	}).Info("Daily aggregation complete")

	a.archive(ctx, computed)
	return &computed, nil
}

func (a *Aggregator) upsert(ctx context.Context, agg DailyAggregate) error {
	toolUsage, err := json.Marshal(agg.ToolUsage)
	if err != nil {
		return fmt.Errorf("failed to encode tool usage: %w", err)
	}
	topCountries, err := json.Marshal(agg.TopCountries)
	if err != nil {
		return fmt.Errorf("failed to encode top countries: %w", err)
	}

	query := `
		INSERT INTO daily_aggregates (
			day, total_analyses, unique_users, unique_ips,
			tool_usage, top_countries, avg_response_time,
			success_rate, error_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (day) DO UPDATE SET
			total_analyses = excluded.total_analyses,
			unique_users = excluded.unique_users,
			unique_ips = excluded.unique_ips,
			tool_usage = excluded.tool_usage,
			top_countries = excluded.top_countries,
			avg_response_time = excluded.avg_response_time,
			success_rate = excluded.success_rate,
			error_count = excluded.error_count,
			updated_at = excluded.updated_at
	`
	_, err = a.db.ExecContext(ctx, query,
		agg.Date, agg.TotalAnalyses, agg.UniqueUsers, agg.UniqueIPs,
		string(toolUsage), string(topCountries), agg.AvgResponseTime,
		agg.SuccessRate, agg.ErrorCount, agg.UpdatedAt,
	)
	return err
}

func (a *Aggregator) archive(ctx context.Context, agg DailyAggregate) {
	if a.archiver == nil {
		return
	}
	data, err := json.Marshal(agg)
	if err == nil {
		err = a.archiver.ArchiveDaily(ctx, agg.Date, data)
	}
	if err != nil {
		a.logger.WithError(err).WithField("date", agg.Date).Warn("Failed to archive daily aggregate")
	}
}

// Backfill aggregates every day in [from, to] inclusive with at most concurrency runs in
// flight. Every day is attempted; the returned error joins the per-day failures.
func (a *Aggregator) Backfill(ctx context.Context, from, to time.Time, concurrency int) error {
	from, to = StartOfDay(from), StartOfDay(to)
	if to.Before(from) {
		return &ValidationError{Field: "to", Message: "must not be before from"}
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days > maxBackfillDays {
		return &ValidationError{Field: "to", Message: fmt.Sprintf("backfill covers %d days, limit is %d", days, maxBackfillDays)}
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(concurrency)

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		day := day
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				errs = append(errs, &AggregationError{Date: day.Format(DayLayout), Op: "schedule", Err: ctx.Err()})
				mu.Unlock()
				return nil
			}
			if _, err := a.AggregateDaily(ctx, day); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	a.logger.WithFields(map[string]interface{}{
		"from":   from.Format(DayLayout),
		"to":     to.Format(DayLayout),
		"days":   days,
		"failed": len(errs),
	}).Info("Backfill complete")

	return errors.Join(errs...)
}

// loadAggregates reads the stored rows with from <= day <= to, ordered by day
func loadAggregates(ctx context.Context, db *sql.DB, from, to string) ([]DailyAggregate, error) {
	query := `
		SELECT day, total_analyses, unique_users, unique_ips,
			tool_usage, top_countries, avg_response_time,
			success_rate, error_count, created_at, updated_at
		FROM daily_aggregates
		WHERE day >= $1 AND day <= $2
		ORDER BY day ASC
	`
	rows, err := db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aggregates []DailyAggregate
	for rows.Next() {
		var (
			agg                     DailyAggregate
			toolUsage, topCountries string
		)
		if err := rows.Scan(
			&agg.Date, &agg.TotalAnalyses, &agg.UniqueUsers, &agg.UniqueIPs,
			&toolUsage, &topCountries, &agg.AvgResponseTime,
			&agg.SuccessRate, &agg.ErrorCount, &agg.CreatedAt, &agg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily aggregate: %w", err)
		}
		if err := json.Unmarshal([]byte(toolUsage), &agg.ToolUsage); err != nil {
			return nil, fmt.Errorf("failed to decode tool usage for %s: %w", agg.Date, err)
		}
		if err := json.Unmarshal([]byte(topCountries), &agg.TopCountries); err != nil {
			return nil, fmt.Errorf("failed to decode top countries for %s: %w", agg.Date, err)
		}
		aggregates = append(aggregates, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily aggregates: %w", err)
	}
	return aggregates, nil
}

// GetAggregate returns the stored row for day, or sql.ErrNoRows
func (a *Aggregator) GetAggregate(ctx context.Context, day time.Time) (*DailyAggregate, error) {
	key := StartOfDay(day).Format(DayLayout)
	rows, err := loadAggregates(ctx, a.db, key, key)
	if err != nil {
		return nil, &PersistenceError{Op: "read aggregate", Err: err}
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	return &rows[0], nil
}
