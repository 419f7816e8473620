package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/seotools/pkg/observability"
)

// Alert event names passed to an AlertNotifier
const (
	AlertAggregateMissing = "aggregate.missing"
	AlertSuccessRateLow   = "success_rate.low"
)

// AlertNotifier forwards alerts to an external receiver
type AlertNotifier interface {
	Notify(ctx context.Context, eventType string, data map[string]interface{}) error
}

// Alerter inspects stored aggregates for conditions operators should act on
type Alerter struct {
	db       *sql.DB
	logger   *observability.Logger
	notifier AlertNotifier
}

// NewAlerter creates a new Alerter instance
func NewAlerter(db *sql.DB, logger *observability.Logger) *Alerter {
	return &Alerter{db: db, logger: logger}
}

// SetNotifier forwards raised alerts to n in addition to logging them
func (a *Alerter) SetNotifier(n AlertNotifier) {
	a.notifier = n
}

func (a *Alerter) notify(ctx context.Context, eventType string, data map[string]interface{}) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Notify(ctx, eventType, data); err != nil {
		a.logger.WithError(err).WithField("event_type", eventType).Warn("Failed to deliver alert notification")
	}
}

// MissingAggregateAlert names a completed day with no aggregate row. The dashboard
// serves such days from raw events until they are backfilled.
type MissingAggregateAlert struct {
	Date string
}

// SuccessRateAlert names a day whose tool success rate fell below the threshold
type SuccessRateAlert struct {
	Date        string
	SuccessRate int64
	ErrorCount  int64
	Threshold   int64
}

// CheckMissingAggregates returns the completed days among the lookbackDays before today
// that have no aggregate row, oldest first
func (a *Alerter) CheckMissingAggregates(ctx context.Context, now time.Time, lookbackDays int) ([]MissingAggregateAlert, error) {
	if lookbackDays < 1 {
		return nil, nil
	}
	yesterday := StartOfDay(now).AddDate(0, 0, -1)
	dates := WindowDates(lookbackDays, yesterday)

	rows, err := loadAggregates(ctx, a.db, dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	present := make(map[string]bool, len(rows))
	for _, row := range rows {
		present[row.Date] = true
	}

	var alerts []MissingAggregateAlert
	for _, date := range dates {
		if !present[date] {
			alerts = append(alerts, MissingAggregateAlert{Date: date})
		}
	}
	return alerts, nil
}

// CheckSuccessRateAlerts returns days in the lookback window whose success rate is below
// threshold
func (a *Alerter) CheckSuccessRateAlerts(ctx context.Context, now time.Time, lookbackDays int, threshold int64) ([]SuccessRateAlert, error) {
	query := `
		SELECT day, success_rate, error_count
		FROM daily_aggregates
		WHERE day >= $1 AND success_rate < $2
		ORDER BY day ASC
	`
	since := StartOfDay(now).AddDate(0, 0, -lookbackDays).Format(DayLayout)

	rows, err := a.db.QueryContext(ctx, query, since, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query success rate alerts: %w", err)
	}
	defer rows.Close()

	var alerts []SuccessRateAlert
	for rows.Next() {
		alert := SuccessRateAlert{Threshold: threshold}
		if err := rows.Scan(&alert.Date, &alert.SuccessRate, &alert.ErrorCount); err != nil {
			return nil, fmt.Errorf("failed to scan success rate alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating success rate alerts: %w", err)
	}

	return alerts, nil
}

// CheckAllAlerts runs all alert checks and logs results. It returns the missing days so
// the caller can backfill them.
func (a *Alerter) CheckAllAlerts(ctx context.Context, now time.Time) []string {
	a.logger.Info("Running analytics alert checks")

	var missingDates []string
	missing, err := a.CheckMissingAggregates(ctx, now, 7)
	if err != nil {
		a.logger.WithError(err).Error("Failed to check missing aggregates")
	} else if len(missing) > 0 {
		for _, alert := range missing {
			missingDates = append(missingDates, alert.Date)
		}
		a.logger.WithField("dates", missingDates).Warnf("ALERT: %d recent days have no daily aggregate", len(missing))
		a.notify(ctx, AlertAggregateMissing, map[string]interface{}{"dates": missingDates})
	}

	lowSuccess, err := a.CheckSuccessRateAlerts(ctx, now, 7, 90)
	if err != nil {
		a.logger.WithError(err).Error("Failed to check success rate alerts")
	} else {
		for _, alert := range lowSuccess {
			fields := map[string]interface{}{
				"date":         alert.Date,
				"success_rate": alert.SuccessRate,
				"error_count":  alert.ErrorCount,
				"threshold":    alert.Threshold,
			}
			a.logger.WithFields(fields).Warn("ALERT: tool success rate below threshold")
			a.notify(ctx, AlertSuccessRateLow, fields)
		}
	}

	a.logger.Info("Analytics alert checks completed")
	return missingDates
}
