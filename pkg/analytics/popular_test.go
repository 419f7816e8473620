package analytics

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/seotools/pkg/observability"
)

func TestPopularURLIndex_RecordAndGet(t *testing.T) {
	db := newTestDB(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	popular := NewPopularURLIndex(db, metrics)
	tracker := NewEventTracker(db, popular, testLogger(), metrics)
	tracker.now = fixedClock(testDay.Add(8 * time.Hour))
	ctx := context.Background()

	for _, tool := range []string{"meta-tags", "opengraph", "meta-tags"} {
		require.NoError(t, tracker.TrackEvent(ctx, Event{
			SessionID: "s-" + tool,
			EventType: EventToolUsage,
			ToolType:  tool,
			TargetURL: "https://blog.example/post/",
			IPAddress: "10.0.0.1",
		}))
	}

	got, err := popular.Get(ctx, "https://BLOG.example/post")
	require.NoError(t, err)
	assert.Equal(t, "blog.example", got.Domain)
	assert.Equal(t, "https://blog.example/post", got.FullURL)
	assert.Equal(t, HashURL("https://blog.example/post"), got.URLHash)
	assert.Equal(t, int64(3), got.TotalAnalyses)
	assert.Equal(t, int64(3), got.WeeklyCount)
	assert.Equal(t, int64(3), got.MonthlyCount)
	assert.Equal(t, int64(2), got.UniqueUsers)
	assert.Equal(t, []string{"meta-tags", "opengraph"}, got.ToolsUsed)
	assert.Equal(t, testDay.Add(8*time.Hour+2*time.Second), got.LastAnalyzed)
	assert.Equal(t, testDay.Add(8*time.Hour), got.CreatedAt)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PopularURLUpsertsTotal.WithLabelValues("inserted")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.PopularURLUpsertsTotal.WithLabelValues("updated")))

	_, err = popular.Get(ctx, "https://never.example")
	assert.ErrorIs(t, err, ErrPopularURLNotFound)

	_, err = popular.Get(ctx, "")
	assert.True(t, IsValidationError(err))
}

func TestPopularURLIndex_Top(t *testing.T) {
	db := newTestDB(t)
	tracker, popular := newTestTracker(db, testDay)
	ctx := context.Background()

	hits := map[string]int{
		"https://a.example": 1,
		"https://b.example": 4,
		"https://c.example": 2,
	}
	for url, n := range hits {
		for i := 0; i < n; i++ {
			require.NoError(t, tracker.TrackEvent(ctx, Event{
				SessionID: "s", EventType: EventToolUsage, ToolType: "tech-stack",
				TargetURL: url, IPAddress: "10.0.0.1",
			}))
		}
	}

	top, err := popular.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b.example", top[0].Domain)
	assert.Equal(t, int64(4), top[0].TotalAnalyses)
	assert.Equal(t, "c.example", top[1].Domain)
	assert.Equal(t, []string{"tech-stack"}, top[0].ToolsUsed)

	top, err = popular.Top(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestPopularURLIndex_RefreshWindows(t *testing.T) {
	db := newTestDB(t)
	popular := NewPopularURLIndex(db, nil)
	tracker := NewEventTracker(db, popular, testLogger(), nil)
	ctx := context.Background()
	now := testDay.Add(12 * time.Hour)

	ages := []time.Duration{
		time.Hour,           // daily, weekly, monthly
		3 * 24 * time.Hour,  // weekly, monthly
		20 * 24 * time.Hour, // monthly
		45 * 24 * time.Hour, // lifetime only
	}
	for i, age := range ages {
		at := now.Add(-age)
		tracker.now = func() time.Time { return at }
		require.NoError(t, tracker.TrackEvent(ctx, Event{
			SessionID: []string{"a", "b", "a", "c"}[i],
			EventType: EventToolUsage,
			ToolType:  "meta-tags",
			TargetURL: "https://example.com",
			IPAddress: "10.0.0.1",
		}))
	}

	before, err := popular.Get(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(4), before.DailyCount)

	n, err := popular.RefreshWindows(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	after, err := popular.Get(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(4), after.TotalAnalyses)
	assert.Equal(t, int64(1), after.DailyCount)
	assert.Equal(t, int64(2), after.WeeklyCount)
	assert.Equal(t, int64(3), after.MonthlyCount)
	assert.Equal(t, int64(3), after.UniqueUsers)
}

func TestPopularURLIndex_WithReader(t *testing.T) {
	primary := newTestDB(t)
	tracker, _ := newTestTracker(primary, testDay)
	seedExampleDay(t, tracker)
	ctx := context.Background()

	replica := openReplica(t)
	popular := NewPopularURLIndex(primary, nil).WithReader(func() *sql.DB { return replica })

	urls, err := popular.Top(ctx, 5)
	require.NoError(t, err)
	require.Len(t, urls, 2)

	// A replica closed under the index falls back to the write handle
	require.NoError(t, replica.Close())

	urls, err = popular.Top(ctx, 5)
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, int64(2), urls[0].TotalAnalyses)
	assert.Equal(t, []string{"meta-tags"}, urls[0].ToolsUsed)

	got, err := popular.Get(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.TotalAnalyses)

	_, err = popular.Get(ctx, "https://missing.example")
	assert.ErrorIs(t, err, ErrPopularURLNotFound)

	// A nil resolver reads from the write handle
	urls, err = NewPopularURLIndex(primary, nil).WithReader(nil).Top(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, urls, 1)
}

func TestPopularURLIndex_GivesUpAfterRepeatedConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	popular := NewPopularURLIndex(db, nil)
	conflict := sqliteConflict()
	for i := 0; i < maxUpsertAttempts; i++ {
		mock.ExpectExec("UPDATE popular_urls SET").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO popular_urls").WillReturnError(conflict)
	}

	err = popular.Record(context.Background(), PopularURLHit{URLHash: "h", Timestamp: testDay})
	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}
