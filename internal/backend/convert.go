package backend

import (
	"time"
	"unicode/utf8"

	"github.com/testrunner/dashboard/internal/app"
)

// DefaultTruncateLength is the output length used by TruncateDefault.
const DefaultTruncateLength = 100

// TimestampLayout is ISO-8601 with millisecond precision, always UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Record is a test result as stored by the test-execution backend
type Record struct {
	ID          string     `json:"id"`
	TestName    string     `json:"testName"`
	Status      app.Status `json:"status"`
	Timestamp   string     `json:"timestamp"`
	Output      string     `json:"output"`
	ErrorOutput string     `json:"errorOutput,omitempty"`
	Duration    *int64     `json:"duration,omitempty"`
	ScriptType  string     `json:"scriptType"` // python, bash, shell
}

// Convert maps a backend record onto the dashboard model. Error output, when
// present, is appended to the regular output.
func Convert(r Record) app.TestResult {
	output := r.Output
	if r.ErrorOutput != "" {
		output += "\n\nError: " + r.ErrorOutput
	}
	return app.TestResult{
		ID:        r.ID,
		Name:      r.TestName,
		Status:    r.Status,
		Timestamp: r.Timestamp,
		Output:    output,
		Duration:  r.Duration,
	}
}

func convertAll(records []Record) []app.TestResult {
	results := make([]app.TestResult, 0, len(records))
	for _, r := range records {
		results = append(results, Convert(r))
	}
	return results
}

// Summarize computes the aggregate counts for a result set.
func Summarize(results []app.TestResult, now time.Time) *app.TestResultsResponse {
	if results == nil {
		results = []app.TestResult{}
	}
	resp := &app.TestResultsResponse{
		Results:     results,
		TotalTests:  len(results),
		LastUpdated: FormatTimestamp(now),
	}
	for _, r := range results {
		switch {
		case r.Status == app.StatusPass:
			resp.PassedTests++
		case r.Status.IsFailure():
			resp.FailedTests++
		}
	}
	return resp
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// TruncateOutput shortens s to maxLength characters followed by "...".
// Strings at or under the limit are returned unchanged. Negative limits are
// treated as 0.
func TruncateOutput(s string, maxLength int) string {
	if maxLength < 0 {
		maxLength = 0
	}
	if utf8.RuneCountInString(s) <= maxLength {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLength {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

// TruncateDefault truncates s to DefaultTruncateLength characters.
func TruncateDefault(s string) string {
	return TruncateOutput(s, DefaultTruncateLength)
}
