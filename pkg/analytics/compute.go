package analytics

import (
	"math"
	"sort"
	"time"
)

// DayLayout is the calendar-day key format
const DayLayout = "2006-01-02"

const topCountriesLimit = 10

// ParseDay parses a YYYY-MM-DD key as a UTC midnight. An empty string means the UTC day
// containing now.
func ParseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return StartOfDay(now), nil
	}
	day, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	return day, nil
}

// StartOfDay truncates t to UTC midnight
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayBounds returns the half-open slice [day 00:00, next day 00:00) in UTC
func DayBounds(day time.Time) (time.Time, time.Time) {
	start := StartOfDay(day)
	return start, start.AddDate(0, 0, 1)
}

// WindowDates returns the days contiguous UTC dates ending on the day containing now
func WindowDates(days int, now time.Time) []string {
	end := StartOfDay(now)
	dates := make([]string, days)
	for i := 0; i < days; i++ {
		dates[i] = end.AddDate(0, 0, i-(days-1)).Format(DayLayout)
	}
	return dates
}

// ComputeAggregate derives the statistics for one day from that day's events. Every
// tool in tools is present in ToolUsage, at zero when unused. Both the scheduled
// aggregator and the dashboard's raw-event path use it.
func ComputeAggregate(day string, events []Event, tools []string) DailyAggregate {
	agg := DailyAggregate{
		Date:         day,
		ToolUsage:    make(map[string]int64, len(tools)),
		TopCountries: []CountryCount{},
		EventCount:   int64(len(events)),
	}
	for _, tool := range tools {
		agg.ToolUsage[tool] = 0
	}

	sessions := make(map[string]struct{})
	ips := make(map[string]struct{})
	countries := make(map[string]int64)
	var countryOrder []string

	var successes, responseTotal, responseCount int64
	for _, e := range events {
		sessions[e.SessionID] = struct{}{}
		if e.IPAddress != "" {
			ips[e.IPAddress] = struct{}{}
		}
		if e.Country != "" {
			if _, ok := countries[e.Country]; !ok {
				countryOrder = append(countryOrder, e.Country)
			}
			countries[e.Country]++
		}
		if e.ResponseTime != nil {
			responseTotal += *e.ResponseTime
			responseCount++
		}
		if !e.Succeeded() {
			agg.ErrorCount++
		}

		if e.EventType != EventToolUsage {
			continue
		}
		agg.TotalAnalyses++
		if e.Succeeded() {
			successes++
		}
		if e.ToolType != "" {
			agg.ToolUsage[e.ToolType]++
		}
	}

	agg.UniqueUsers = int64(len(sessions))
	agg.UniqueIPs = int64(len(ips))

	if responseCount > 0 {
		agg.AvgResponseTime = int64(math.Round(float64(responseTotal) / float64(responseCount)))
	}

	agg.SuccessRate = 100
	if agg.TotalAnalyses > 0 {
		agg.SuccessRate = int64(math.Round(100 * float64(successes) / float64(agg.TotalAnalyses)))
	}

	for _, country := range countryOrder {
		agg.TopCountries = append(agg.TopCountries, CountryCount{Country: country, Count: countries[country]})
	}
	sort.SliceStable(agg.TopCountries, func(i, j int) bool {
		return agg.TopCountries[i].Count > agg.TopCountries[j].Count
	})
	if len(agg.TopCountries) > topCountriesLimit {
		agg.TopCountries = agg.TopCountries[:topCountriesLimit]
	}

	return agg
}

// bucketByDay groups events by the UTC date of CreatedAt
func bucketByDay(events []Event) map[string][]Event {
	buckets := make(map[string][]Event)
	for _, e := range events {
		key := e.CreatedAt.UTC().Format(DayLayout)
		buckets[key] = append(buckets[key], e)
	}
	return buckets
}
