package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/seotools/pkg/observability"
)

// EventSink persists events
type EventSink interface {
	TrackEvent(ctx context.Context, event Event) error
}

// Recorder is the handler-facing entry point for tracking. Writes run on a context
// detached from the request so a disconnecting client cannot abort a write in flight,
// and failures are logged instead of returned.
type Recorder struct {
	sink    EventSink
	logger  *observability.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRecorder creates a recorder bounding each write by timeout
func NewRecorder(sink EventSink, logger *observability.Logger, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{sink: sink, logger: logger, timeout: timeout}
}

// Record writes event synchronously and never fails
func (r *Recorder) Record(ctx context.Context, event Event) {
	defer observability.RecoverPanic(r.logger, "record analytics event")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.sink.TrackEvent(ctx, event); err != nil {
		logger := r.logger.WithError(err).WithFields(map[string]interface{}{
			"event_type": string(event.EventType),
			"tool_type":  event.ToolType,
		})
		if requestID := observability.GetRequestID(ctx); requestID != "" {
			logger = logger.WithField("request_id", requestID)
		}
		if IsValidationError(err) {
			logger.Warn("Dropped invalid analytics event")
			return
		}
		logger.Error("Failed to record analytics event")
	}
}

// Go records event in the background
func (r *Recorder) Go(ctx context.Context, event Event) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Record(ctx, event)
	}()
}

// Wait blocks until background writes started with Go have finished
func (r *Recorder) Wait() {
	r.wg.Wait()
}
