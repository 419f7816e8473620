package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/seotools/pkg/observability"
	"github.com/platinummonkey/seotools/pkg/storage"
)

// testDay is the fixed calendar day most behavior tests run against
var testDay = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// newTestDB opens a migrated in-memory SQLite database private to the test
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open(storage.DriverSQLite, testDSN(t))
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := storage.Migrate(context.Background(), db, storage.DriverSQLite); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

// testDSN names the shared in-memory database of the running test
func testDSN(t *testing.T) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
}

// openReplica opens a second handle onto the database newTestDB created, standing in
// for a read replica
func openReplica(t *testing.T) *sql.DB {
	t.Helper()
	replica, err := sql.Open(storage.DriverSQLite, testDSN(t))
	if err != nil {
		t.Fatalf("Failed to open replica: %v", err)
	}
	replica.SetMaxOpenConns(1)
	t.Cleanup(func() { replica.Close() })
	return replica
}

// fixedClock returns a clock that advances by one second per call starting at start
func fixedClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}

// newTestTracker wires a tracker and popular index against db
func newTestTracker(db *sql.DB, now time.Time) (*EventTracker, *PopularURLIndex) {
	popular := NewPopularURLIndex(db, nil)
	tracker := NewEventTracker(db, popular, testLogger(), nil)
	tracker.now = fixedClock(now)
	return tracker, popular
}

// seedExampleDay records three meta-tags analyses and one page view on testDay
func seedExampleDay(t *testing.T, tracker *EventTracker) {
	t.Helper()
	ctx := context.Background()

	events := []Event{
		{SessionID: "s1", EventType: EventToolUsage, ToolType: "meta-tags", TargetURL: "https://example.com/", IPAddress: "10.0.0.1", Country: "US", ResponseTime: int64Ptr(100)},
		{SessionID: "s2", EventType: EventToolUsage, ToolType: "meta-tags", TargetURL: "https://example.com", IPAddress: "10.0.0.2", Country: "DE", ResponseTime: int64Ptr(200)},
		{SessionID: "s3", EventType: EventToolUsage, ToolType: "meta-tags", TargetURL: "https://other.example/page", IPAddress: "10.0.0.3", Country: "US", Success: boolPtr(false), ErrorMessage: "fetch timeout"},
		{SessionID: "s1", EventType: EventPageView, IPAddress: "10.0.0.1", Country: "US"},
	}
	for _, e := range events {
		if err := tracker.TrackEvent(ctx, e); err != nil {
			t.Fatalf("TrackEvent failed: %v", err)
		}
	}
}

func sqliteConflict() error {
	return sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
}
