package analytics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Export writes summary to w in format
func Export(w io.Writer, summary *DashboardSummary, format string) error {
	switch format {
	case FormatCSV, "":
		return ExportCSV(w, summary)
	case FormatJSON:
		return ExportJSON(w, summary)
	default:
		return &ValidationError{Field: "format", Message: fmt.Sprintf("unsupported export format %q", format)}
	}
}

// ExportCSV renders the summary as CSV sections separated by blank lines: the per-day
// series, tool totals, top domains and the window totals.
func ExportCSV(w io.Writer, summary *DashboardSummary) error {
	cw := csv.NewWriter(w)

	records := [][]string{
		{"date", "total_analyses", "unique_users", "avg_response_time_ms", "success_rate", "error_count"},
	}
	for _, day := range summary.DailyStats {
		records = append(records, []string{
			day.Date,
			strconv.FormatInt(day.TotalAnalyses, 10),
			strconv.FormatInt(day.UniqueUsers, 10),
			strconv.FormatInt(day.AvgResponseTime, 10),
			strconv.FormatInt(day.SuccessRate, 10),
			strconv.FormatInt(day.ErrorCount, 10),
		})
	}

	records = append(records, nil, []string{"tool", "usage"})
	for _, tool := range sortedTools(summary.ToolStats) {
		records = append(records, []string{tool, strconv.FormatInt(summary.ToolStats[tool], 10)})
	}

	records = append(records, nil, []string{"domain", "url", "total_analyses", "unique_users"})
	for _, u := range summary.TopDomains {
		records = append(records, []string{
			u.Domain,
			u.FullURL,
			strconv.FormatInt(u.TotalAnalyses, 10),
			strconv.FormatInt(u.UniqueUsers, 10),
		})
	}

	records = append(records, nil,
		[]string{"total_analyses", "total_users", "avg_response_time_ms", "source", "realtime_fallback"},
		[]string{
			strconv.FormatInt(summary.TotalAnalyses, 10),
			strconv.FormatInt(summary.TotalUsers, 10),
			strconv.FormatInt(summary.AvgResponseTime, 10),
			summary.Source,
			strconv.FormatBool(summary.IsRealtimeFallback),
		},
	)

	for _, record := range records {
		if record == nil {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
			continue
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
		// flush before raw blank lines so sections stay ordered
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
	}
	return nil
}

// ExportJSON renders the summary as indented JSON
func ExportJSON(w io.Writer, summary *DashboardSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
