package api

import (
	"context"
	"net/http"
	"time"

	"github.com/platinummonkey/seotools/pkg/analytics"
	"github.com/platinummonkey/seotools/pkg/observability"
)

// EventRecorder records events without reporting failures to the caller
type EventRecorder interface {
	Go(ctx context.Context, event analytics.Event)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// TrackToolUsage wraps a tool handler and records a tool_usage event for every call.
// The analyzed URL is read from the "url" query parameter. A 4xx or 5xx response is
// recorded as a failure. Recording happens in the background and never alters the
// response.
func TrackToolUsage(recorder EventRecorder, toolType string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		elapsed := time.Since(start).Milliseconds()
		success := sw.status < http.StatusBadRequest
		event := analytics.Event{
			SessionID:    observability.GetSessionID(r.Context()),
			EventType:    analytics.EventToolUsage,
			ToolType:     toolType,
			TargetURL:    r.URL.Query().Get("url"),
			ResponseTime: &elapsed,
			Success:      &success,
		}
		if !success {
			event.ErrorMessage = http.StatusText(sw.status)
		}

		recorder.Go(r.Context(), analytics.RequestContext(r, event))
	})
}
