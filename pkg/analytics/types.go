package analytics

import (
	"time"
)

// EventType classifies a tracked action
type EventType string

const (
	EventToolUsage EventType = "tool_usage"
	EventPageView  EventType = "page_view"
	EventError     EventType = "error"
	EventExport    EventType = "export"
	EventShare     EventType = "share"
)

// Valid reports whether t is one of the known event types
func (t EventType) Valid() bool {
	switch t {
	case EventToolUsage, EventPageView, EventError, EventExport, EventShare:
		return true
	}
	return false
}

// Event is one immutable telemetry record. CreatedAt is assigned by the store.
type Event struct {
	ID           int64                  `json:"id,omitempty"`
	SessionID    string                 `json:"sessionId"`
	EventType    EventType              `json:"eventType"`
	ToolType     string                 `json:"toolType,omitempty"`
	TargetURL    string                 `json:"targetUrl,omitempty"`
	IPAddress    string                 `json:"ipAddress"`
	UserAgent    string                 `json:"userAgent,omitempty"`
	Country      string                 `json:"country,omitempty"`
	City         string                 `json:"city,omitempty"`
	Referrer     string                 `json:"referrer,omitempty"`
	ResponseTime *int64                 `json:"responseTime,omitempty"` // milliseconds
	Success      *bool                  `json:"success,omitempty"`      // nil means true
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// Succeeded returns the effective success flag
func (e Event) Succeeded() bool {
	return e.Success == nil || *e.Success
}

// CountryCount is one entry of a day's country ranking
type CountryCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

// DailyAggregate is the precomputed summary of one UTC calendar day.
//
// SuccessRate covers tool_usage events only, while ErrorCount counts every failed event.
// A day whose only failures are page views or error events keeps SuccessRate at 100.
type DailyAggregate struct {
	Date            string           `json:"date"`
	TotalAnalyses   int64            `json:"totalAnalyses"`
	UniqueUsers     int64            `json:"uniqueUsers"`
	UniqueIPs       int64            `json:"uniqueIps"`
	ToolUsage       map[string]int64 `json:"toolUsage"`
	TopCountries    []CountryCount   `json:"topCountries"`
	AvgResponseTime int64            `json:"avgResponseTime"`
	SuccessRate     int64            `json:"successRate"`
	ErrorCount      int64            `json:"errorCount"`
	EventCount      int64            `json:"-"`
	CreatedAt       time.Time        `json:"createdAt,omitempty"`
	UpdatedAt       time.Time        `json:"updatedAt,omitempty"`
}

// PopularURL is the running usage summary of one normalized URL
type PopularURL struct {
	Domain        string    `json:"domain"`
	FullURL       string    `json:"fullUrl"`
	URLHash       string    `json:"urlHash"`
	TotalAnalyses int64     `json:"totalAnalyses"`
	UniqueUsers   int64     `json:"uniqueUsers"`
	ToolsUsed     []string  `json:"toolsUsed"`
	DailyCount    int64     `json:"dailyCount"`
	WeeklyCount   int64     `json:"weeklyCount"`
	MonthlyCount  int64     `json:"monthlyCount"`
	LastAnalyzed  time.Time `json:"lastAnalyzed"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DailyStat is one entry of the dashboard's per-day series
type DailyStat struct {
	Date            string `json:"date"`
	TotalAnalyses   int64  `json:"totalAnalyses"`
	UniqueUsers     int64  `json:"uniqueUsers"`
	AvgResponseTime int64  `json:"avgResponseTime"`
	SuccessRate     int64  `json:"successRate"`
	ErrorCount      int64  `json:"errorCount"`
}

// Summary sources
const (
	SourceAggregates  = "aggregates"
	SourceRealtime    = "realtime"
	SourceUnavailable = "unavailable"
)

// DashboardSummary is the windowed dashboard view. Its shape does not depend on which
// path produced it; IsRealtimeFallback and Source record provenance.
type DashboardSummary struct {
	Days               int              `json:"days"`
	StartDate          string           `json:"startDate"`
	EndDate            string           `json:"endDate"`
	TotalAnalyses      int64            `json:"totalAnalyses"`
	TotalUsers         int64            `json:"totalUsers"`
	AvgResponseTime    int64            `json:"avgResponseTime"`
	DailyStats         []DailyStat      `json:"dailyStats"`
	ToolStats          map[string]int64 `json:"toolStats"`
	TopDomains         []PopularURL     `json:"topDomains"`
	IsRealtimeFallback bool             `json:"isRealtimeFallback"`
	Source             string           `json:"source"`
	GeneratedAt        time.Time        `json:"generatedAt"`
}
