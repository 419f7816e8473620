package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/seotools/pkg/analytics"
	"github.com/platinummonkey/seotools/pkg/httputil"
	"github.com/platinummonkey/seotools/pkg/observability"
)

const (
	defaultPopularLimit = 10
	maxPopularLimit     = 100
)

// EventTracker persists a single analytics event
type EventTracker interface {
	TrackEvent(ctx context.Context, event analytics.Event) error
}

// DashboardService serves windowed dashboard summaries
type DashboardService interface {
	GetDashboardStats(ctx context.Context, days int) (*analytics.DashboardSummary, error)
	InvalidateCache(ctx context.Context) error
}

// DailyAggregator recomputes one day's aggregate row
type DailyAggregator interface {
	AggregateDaily(ctx context.Context, day time.Time) (*analytics.DailyAggregate, error)
}

// PopularURLs lists the most analyzed URLs
type PopularURLs interface {
	Top(ctx context.Context, limit int) ([]analytics.PopularURL, error)
}

// AnalyticsHandlers provides analytics API endpoints
type AnalyticsHandlers struct {
	tracker    EventTracker
	dashboard  DashboardService
	aggregator DailyAggregator
	popular    PopularURLs
	logger     *observability.Logger
	ingest     func(http.Handler) http.Handler
	now        func() time.Time
}

// NewAnalyticsHandlers creates a new analytics handlers instance
func NewAnalyticsHandlers(tracker EventTracker, dashboard DashboardService, aggregator DailyAggregator, popular PopularURLs, logger *observability.Logger) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		tracker:    tracker,
		dashboard:  dashboard,
		aggregator: aggregator,
		popular:    popular,
		logger:     logger,
		now:        time.Now,
	}
}

// WithIngestLimit wraps the event endpoint with mw
func (h *AnalyticsHandlers) WithIngestLimit(mw func(http.Handler) http.Handler) *AnalyticsHandlers {
	h.ingest = mw
	return h
}

// RegisterRoutes registers analytics API routes
func (h *AnalyticsHandlers) RegisterRoutes(r *mux.Router) {
	var track http.Handler = http.HandlerFunc(h.trackEvent)
	if h.ingest != nil {
		track = h.ingest(track)
	}
	r.Handle("/api/v1/analytics/events", track).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/analytics/dashboard", h.getDashboard).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/analytics/dashboard/export", h.exportDashboard).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/analytics/aggregate", h.aggregate).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/analytics/popular", h.getPopular).Methods(http.MethodGet)
}

// trackEvent handles POST /api/v1/analytics/events
// The session comes from the seo_session cookie unless the body names one; client
// address, user agent, referrer and geo headers are taken from the request.
func (h *AnalyticsHandlers) trackEvent(w http.ResponseWriter, r *http.Request) {
	var event analytics.Event
	if !httputil.ParseJSONOrError(w, r, &event) {
		return
	}

	// Store-assigned fields
	event.ID = 0
	event.CreatedAt = time.Time{}

	if event.SessionID == "" {
		event.SessionID = observability.GetSessionID(r.Context())
	}
	event = analytics.RequestContext(r, event)

	if err := h.tracker.TrackEvent(r.Context(), event); err != nil {
		if writeValidationError(w, err) {
			return
		}
		observability.FromContext(r.Context()).WithError(err).
			WithField("event_type", string(event.EventType)).
			Error("Failed to persist analytics event")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to record event")
		return
	}

	_ = httputil.WriteAccepted(w, map[string]string{"status": "accepted"})
}

// getDashboard handles GET /api/v1/analytics/dashboard
// Query params:
//   - days: window length in days (1-365), required
func (h *AnalyticsHandlers) getDashboard(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summary(w, r)
	if !ok {
		return
	}
	_ = httputil.WriteSuccess(w, summary)
}

// exportDashboard handles GET /api/v1/analytics/dashboard/export
// Query params:
//   - days: window length in days (1-365), required
//   - format: csv (default) or json
func (h *AnalyticsHandlers) exportDashboard(w http.ResponseWriter, r *http.Request) {
	format := httputil.ParseQueryString(r, "format", analytics.FormatCSV)
	if format != analytics.FormatCSV && format != analytics.FormatJSON {
		httputil.WriteFieldError(w, "format", "must be csv or json")
		return
	}

	summary, ok := h.summary(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := analytics.Export(&buf, summary, format); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == analytics.FormatJSON {
		contentType = "application/json"
	}
	filename := fmt.Sprintf("seo-dashboard-%dd-%s.%s", summary.Days, summary.EndDate, format)
	httputil.SetAttachment(w, contentType, filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *AnalyticsHandlers) summary(w http.ResponseWriter, r *http.Request) (*analytics.DashboardSummary, bool) {
	days, err := httputil.ParseRequiredQueryInt(r, "days")
	if err != nil {
		httputil.WriteFieldError(w, "days", err.Error())
		return nil, false
	}

	summary, err := h.dashboard.GetDashboardStats(r.Context(), days)
	if err != nil {
		if !writeValidationError(w, err) {
			httputil.WriteInternalError(w, err)
		}
		return nil, false
	}
	return summary, true
}

// aggregate handles POST /api/v1/analytics/aggregate
// Query params:
//   - date: UTC day to (re)aggregate as YYYY-MM-DD, default today
func (h *AnalyticsHandlers) aggregate(w http.ResponseWriter, r *http.Request) {
	day, err := analytics.ParseDay(r.URL.Query().Get("date"), h.now())
	if err != nil {
		writeValidationError(w, err)
		return
	}
	date := day.Format(analytics.DayLayout)

	agg, err := h.aggregator.AggregateDaily(r.Context(), day)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).WithField("date", date).Error("On-demand aggregation failed")
		httputil.WriteDetailedError(w, http.StatusInternalServerError, err, map[string]string{"date": date})
		return
	}

	if err := h.dashboard.InvalidateCache(r.Context()); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("Failed to invalidate dashboard cache")
	}

	_ = httputil.WriteSuccess(w, agg)
}

// getPopular handles GET /api/v1/analytics/popular
// Query params:
//   - limit: number of results (1-100), default 10
func (h *AnalyticsHandlers) getPopular(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", defaultPopularLimit)
	if err != nil || limit < 1 || limit > maxPopularLimit {
		httputil.WriteFieldError(w, "limit", fmt.Sprintf("must be between 1 and %d", maxPopularLimit))
		return
	}

	urls, err := h.popular.Top(r.Context(), limit)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to list popular URLs")
		httputil.WriteInternalError(w, err)
		return
	}
	if urls == nil {
		urls = []analytics.PopularURL{}
	}
	_ = httputil.WriteSuccess(w, urls)
}

// writeValidationError writes a 400 when err is a *analytics.ValidationError
func writeValidationError(w http.ResponseWriter, err error) bool {
	var verr *analytics.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	httputil.WriteFieldError(w, verr.Field, verr.Error())
	return true
}
