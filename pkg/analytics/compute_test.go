package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAggregate_ExampleScenario(t *testing.T) {
	events := []Event{
		{SessionID: "a", EventType: EventToolUsage, ToolType: "meta-tags", IPAddress: "1.1.1.1", ResponseTime: int64Ptr(100)},
		{SessionID: "b", EventType: EventToolUsage, ToolType: "meta-tags", IPAddress: "1.1.1.2", ResponseTime: int64Ptr(200)},
		{SessionID: "c", EventType: EventToolUsage, ToolType: "meta-tags", IPAddress: "1.1.1.2", Success: boolPtr(false)},
		{SessionID: "a", EventType: EventPageView, IPAddress: "1.1.1.1"},
	}

	agg := ComputeAggregate("2024-03-15", events, DefaultTools)

	assert.Equal(t, "2024-03-15", agg.Date)
	assert.Equal(t, int64(3), agg.TotalAnalyses)
	assert.Equal(t, int64(3), agg.ToolUsage["meta-tags"])
	assert.Equal(t, int64(150), agg.AvgResponseTime)
	assert.Equal(t, int64(67), agg.SuccessRate)
	assert.Equal(t, int64(1), agg.ErrorCount)
	assert.Equal(t, int64(3), agg.UniqueUsers)
	assert.Equal(t, int64(2), agg.UniqueIPs)
	assert.Equal(t, int64(4), agg.EventCount)
}

func TestComputeAggregate_Empty(t *testing.T) {
	agg := ComputeAggregate("2024-03-15", nil, []string{"meta-tags", "opengraph"})

	assert.Equal(t, int64(0), agg.TotalAnalyses)
	assert.Equal(t, int64(100), agg.SuccessRate)
	assert.Equal(t, int64(0), agg.AvgResponseTime)
	assert.Equal(t, map[string]int64{"meta-tags": 0, "opengraph": 0}, agg.ToolUsage)
	assert.NotNil(t, agg.TopCountries)
	assert.Empty(t, agg.TopCountries)
}

func TestComputeAggregate_FailuresOutsideToolUsage(t *testing.T) {
	events := []Event{
		{SessionID: "a", EventType: EventToolUsage, ToolType: "meta-tags", IPAddress: "1.1.1.1"},
		{SessionID: "a", EventType: EventPageView, IPAddress: "1.1.1.1", Success: boolPtr(false)},
		{SessionID: "b", EventType: EventError, IPAddress: "1.1.1.2", Success: boolPtr(false), ErrorMessage: "script error"},
	}

	agg := ComputeAggregate("2024-03-15", events, DefaultTools)

	assert.Equal(t, int64(1), agg.TotalAnalyses)
	assert.Equal(t, int64(100), agg.SuccessRate)
	assert.Equal(t, int64(2), agg.ErrorCount)
	assert.Equal(t, int64(3), agg.EventCount)

	// no tool usage at all still reports a full success rate
	agg = ComputeAggregate("2024-03-15", events[1:], DefaultTools)
	assert.Equal(t, int64(0), agg.TotalAnalyses)
	assert.Equal(t, int64(100), agg.SuccessRate)
	assert.Equal(t, int64(2), agg.ErrorCount)
}

func TestComputeAggregate_ToolUsage(t *testing.T) {
	events := []Event{
		{SessionID: "a", EventType: EventToolUsage, ToolType: "opengraph"},
		{SessionID: "a", EventType: EventToolUsage, ToolType: "brand-new-tool"},
		{SessionID: "a", EventType: EventToolUsage},
		// only tool_usage events count toward tools
		{SessionID: "a", EventType: EventExport, ToolType: "opengraph"},
	}

	agg := ComputeAggregate("d", events, []string{"meta-tags", "opengraph"})

	assert.Equal(t, int64(3), agg.TotalAnalyses)
	assert.Equal(t, map[string]int64{
		"meta-tags":      0,
		"opengraph":      1,
		"brand-new-tool": 1,
	}, agg.ToolUsage)
}

func TestComputeAggregate_SumCheck(t *testing.T) {
	var events []Event
	for i := 0; i < 25; i++ {
		e := Event{SessionID: fmt.Sprintf("s%d", i%7), EventType: EventToolUsage, ToolType: "meta-tags"}
		if i%4 == 0 {
			e.Success = boolPtr(false)
		}
		if i%5 == 0 {
			e.EventType = EventPageView
		}
		events = append(events, e)
	}

	agg := ComputeAggregate("d", events, DefaultTools)

	var successes int64
	for _, e := range events {
		if e.Succeeded() {
			successes++
		}
	}
	assert.Equal(t, int64(len(events)), agg.ErrorCount+successes)
	assert.Equal(t, int64(20), agg.TotalAnalyses)
	assert.Equal(t, int64(7), agg.UniqueUsers)
}

func TestComputeAggregate_TopCountries(t *testing.T) {
	var events []Event
	add := func(country string, n int) {
		for i := 0; i < n; i++ {
			events = append(events, Event{SessionID: "s", EventType: EventPageView, Country: country})
		}
	}
	// ties resolve by first appearance
	add("FR", 2)
	add("US", 5)
	add("DE", 2)
	add("", 9)
	for i := 0; i < 10; i++ {
		add(fmt.Sprintf("C%d", i), 1)
	}

	agg := ComputeAggregate("d", events, nil)

	require.Len(t, agg.TopCountries, 10)
	assert.Equal(t, CountryCount{Country: "US", Count: 5}, agg.TopCountries[0])
	assert.Equal(t, CountryCount{Country: "FR", Count: 2}, agg.TopCountries[1])
	assert.Equal(t, CountryCount{Country: "DE", Count: 2}, agg.TopCountries[2])
	assert.Equal(t, "C0", agg.TopCountries[3].Country)
	assert.Equal(t, "C6", agg.TopCountries[9].Country)
	for _, c := range agg.TopCountries {
		assert.NotEmpty(t, c.Country)
	}
}

func TestComputeAggregate_Rounding(t *testing.T) {
	events := []Event{
		{SessionID: "a", EventType: EventToolUsage, ResponseTime: int64Ptr(1)},
		{SessionID: "a", EventType: EventToolUsage, ResponseTime: int64Ptr(2)},
		{SessionID: "a", EventType: EventError, ResponseTime: int64Ptr(2), Success: boolPtr(false)},
	}

	agg := ComputeAggregate("d", events, nil)

	// (1+2+2)/3 = 1.67
	assert.Equal(t, int64(2), agg.AvgResponseTime)
	assert.Equal(t, int64(100), agg.SuccessRate)
	assert.Equal(t, int64(1), agg.ErrorCount)
}

func TestParseDay(t *testing.T) {
	now := time.Date(2024, 3, 15, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))

	day, err := ParseDay("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), day)

	day, err = ParseDay("2024-02-29", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), day)

	for _, bad := range []string{"2024-13-01", "15/03/2024", "yesterday"} {
		_, err := ParseDay(bad, now)
		assert.True(t, IsValidationError(err), bad)
	}
}

func TestDayBounds(t *testing.T) {
	start, end := DayBounds(time.Date(2024, 3, 15, 17, 4, 5, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), end)
}

func TestWindowDates(t *testing.T) {
	now := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{"2024-03-02"}, WindowDates(1, now))
	assert.Equal(t, []string{"2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02"}, WindowDates(4, now))

	dates := WindowDates(365, now)
	require.Len(t, dates, 365)
	assert.Equal(t, "2024-03-02", dates[364])
	for i := 1; i < len(dates); i++ {
		prev, _ := time.Parse(DayLayout, dates[i-1])
		cur, _ := time.Parse(DayLayout, dates[i])
		assert.Equal(t, 24*time.Hour, cur.Sub(prev))
	}
}

func TestBucketByDay(t *testing.T) {
	events := []Event{
		{CreatedAt: time.Date(2024, 3, 14, 23, 59, 59, 0, time.UTC)},
		{CreatedAt: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		// 20:00 in UTC-5 is 01:00 UTC the next day
		{CreatedAt: time.Date(2024, 3, 15, 20, 0, 0, 0, time.FixedZone("EST", -5*3600))},
	}

	buckets := bucketByDay(events)
	assert.Len(t, buckets["2024-03-14"], 1)
	assert.Len(t, buckets["2024-03-15"], 1)
	assert.Len(t, buckets["2024-03-16"], 1)
}
