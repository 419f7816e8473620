package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/seotools/pkg/observability"
)

var tracer = otel.Tracer("github.com/platinummonkey/seotools/pkg/analytics")

// EventTracker appends telemetry events to the event store
type EventTracker struct {
	db      *sql.DB
	popular *PopularURLIndex
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewEventTracker creates a tracker writing to db. popular may be nil, in which case
// tool_usage events do not update the popular-URL index.
func NewEventTracker(db *sql.DB, popular *PopularURLIndex, logger *observability.Logger, metrics *observability.Metrics) *EventTracker {
	return &EventTracker{
		db:      db,
		popular: popular,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// ValidateEvent checks required fields
func ValidateEvent(event Event) error {
	if strings.TrimSpace(event.SessionID) == "" {
		return &ValidationError{Field: "sessionId", Message: "is required"}
	}
	if event.EventType == "" {
		return &ValidationError{Field: "eventType", Message: "is required"}
	}
	if !event.EventType.Valid() {
		return &ValidationError{Field: "eventType", Message: fmt.Sprintf("unknown event type %q", event.EventType)}
	}
	if strings.TrimSpace(event.IPAddress) == "" {
		return &ValidationError{Field: "ipAddress", Message: "is required"}
	}
	if event.ResponseTime != nil && *event.ResponseTime < 0 {
		return &ValidationError{Field: "responseTime", Message: "must not be negative"}
	}
	return nil
}

// TrackEvent validates and appends one event. A tool_usage event with a target URL
// also updates the popular-URL index. CreatedAt is set from the server clock.
func (t *EventTracker) TrackEvent(ctx context.Context, event Event) (err error) {
	ctx, span := tracer.Start(ctx, "analytics.TrackEvent")
	defer span.End()
	span.SetAttributes(attribute.String("event.type", string(event.EventType)))

	defer func() {
		t.metrics.RecordEvent(string(event.EventType), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := ValidateEvent(event); err != nil {
		return err
	}

	var normalized, domain, urlHash string
	if event.TargetURL != "" {
		var nerr error
		normalized, domain, nerr = NormalizeURL(event.TargetURL)
		if nerr != nil {
			t.logger.WithError(nerr).WithField("target_url", event.TargetURL).
				Warn("Skipping popular URL tracking for unparseable target")
		} else {
			urlHash = HashURL(normalized)
		}
	}

	var metadata interface{}
	if len(event.Metadata) > 0 {
		data, merr := json.Marshal(event.Metadata)
		if merr != nil {
			return &ValidationError{Field: "metadata", Message: merr.Error()}
		}
		metadata = string(data)
	}

	success := event.Succeeded()
	createdAt := t.now().UTC().Truncate(time.Microsecond)

	query := `
		INSERT INTO analytics_events (
			session_id, event_type, tool_type, target_url, url_hash,
			ip_address, user_agent, country, city, referrer,
			response_time, success, error_message, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = t.db.ExecContext(ctx, query,
		event.SessionID, string(event.EventType), nullString(event.ToolType),
		nullString(event.TargetURL), nullString(urlHash),
		event.IPAddress, nullString(event.UserAgent), nullString(event.Country),
		nullString(event.City), nullString(event.Referrer),
		nullInt64(event.ResponseTime), success, nullString(event.ErrorMessage),
		metadata, createdAt,
	)
	if err != nil {
		return &PersistenceError{Op: "insert event", Err: err}
	}

	if event.EventType != EventToolUsage || urlHash == "" || t.popular == nil {
		return nil
	}

	if err := t.popular.Record(ctx, PopularURLHit{
		Domain:    domain,
		FullURL:   normalized,
		URLHash:   urlHash,
		ToolType:  event.ToolType,
		Timestamp: createdAt,
	}); err != nil {
		return &PersistenceError{Op: "upsert popular url", Err: err}
	}
	return nil
}

// ListEvents returns the events created in [from, to) ordered by creation time
func (t *EventTracker) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	return queryEvents(ctx, t.db, from, to)
}

func queryEvents(ctx context.Context, db *sql.DB, from, to time.Time) ([]Event, error) {
	query := `
		SELECT id, session_id, event_type, tool_type, target_url,
			ip_address, user_agent, country, city, referrer,
			response_time, success, error_message, metadata, created_at
		FROM analytics_events
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e                                       Event
			eventType                               string
			toolType, targetURL, userAgent, country sql.NullString
			city, referrer, errorMessage, metadata  sql.NullString
			responseTime                            sql.NullInt64
			success                                 bool
		)
		if err := rows.Scan(
			&e.ID, &e.SessionID, &eventType, &toolType, &targetURL,
			&e.IPAddress, &userAgent, &country, &city, &referrer,
			&responseTime, &success, &errorMessage, &metadata, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		e.EventType = EventType(eventType)
		e.ToolType = toolType.String
		e.TargetURL = targetURL.String
		e.UserAgent = userAgent.String
		e.Country = country.String
		e.City = city.String
		e.Referrer = referrer.String
		e.ErrorMessage = errorMessage.String
		e.Success = &success
		e.CreatedAt = e.CreatedAt.UTC()
		if responseTime.Valid {
			rt := responseTime.Int64
			e.ResponseTime = &rt
		}
		if metadata.Valid && metadata.String != "" {
			dec := json.NewDecoder(strings.NewReader(metadata.String))
			dec.UseNumber()
			if err := dec.Decode(&e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for event %d: %w", e.ID, err)
			}
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// Helper function to convert empty strings to NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
