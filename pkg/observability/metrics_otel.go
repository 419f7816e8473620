package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the analytics pipeline metrics onto the global OTel meter so
// they reach the OTLP collector alongside traces.
type OTelMetrics struct {
	eventsTracked       metric.Int64Counter
	popularUpserts      metric.Int64Counter
	aggregationRuns     metric.Int64Counter
	aggregationDuration metric.Float64Histogram
	dashboardRequests   metric.Int64Counter
	dashboardDuration   metric.Float64Histogram
}

// NewOTelMetrics creates the instruments from the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return newOTelMetrics(otel.Meter("github.com/platinummonkey/seotools"))
}

func newOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.eventsTracked, err = meter.Int64Counter(
		"seotools.events.tracked",
		metric.WithDescription("Analytics events recorded"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create events counter: %w", err)
	}

	m.popularUpserts, err = meter.Int64Counter(
		"seotools.popular_url.upserts",
		metric.WithDescription("Popular-URL upserts by outcome"),
		metric.WithUnit("{upsert}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upserts counter: %w", err)
	}

	m.aggregationRuns, err = meter.Int64Counter(
		"seotools.aggregation.runs",
		metric.WithDescription("Daily aggregation runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregation counter: %w", err)
	}

	m.aggregationDuration, err = meter.Float64Histogram(
		"seotools.aggregation.duration",
		metric.WithDescription("Daily aggregation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregation histogram: %w", err)
	}

	m.dashboardRequests, err = meter.Int64Counter(
		"seotools.dashboard.requests",
		metric.WithDescription("Dashboard summaries served by source"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard counter: %w", err)
	}

	m.dashboardDuration, err = meter.Float64Histogram(
		"seotools.dashboard.duration",
		metric.WithDescription("Dashboard summary computation time in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard histogram: %w", err)
	}

	return m, nil
}

// AttachOTel mirrors every subsequent Record* call onto o
func (m *Metrics) AttachOTel(o *OTelMetrics) {
	if m == nil {
		return
	}
	m.otel = o
}

func (o *OTelMetrics) recordEvent(ctx context.Context, eventType, status string) {
	o.eventsTracked.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.type", eventType),
		attribute.String("status", status),
	))
}

func (o *OTelMetrics) recordPopularUpsert(ctx context.Context, result string) {
	o.popularUpserts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (o *OTelMetrics) recordAggregation(ctx context.Context, duration time.Duration, status string) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	o.aggregationRuns.Add(ctx, 1, attrs)
	o.aggregationDuration.Record(ctx, duration.Seconds(), attrs)
}

func (o *OTelMetrics) recordDashboard(ctx context.Context, source string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	o.dashboardRequests.Add(ctx, 1, attrs)
	o.dashboardDuration.Record(ctx, duration.Seconds(), attrs)
}
