package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/testrunner/dashboard/internal/app"
	"github.com/testrunner/dashboard/internal/history"
)

func ms(v int64) *int64 { return &v }

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "N/A", FormatDuration(nil))
	assert.Equal(t, "N/A", FormatDuration(ms(0)))
	assert.Equal(t, "999ms", FormatDuration(ms(999)))
	assert.Equal(t, "1.0s", FormatDuration(ms(1000)))
	assert.Equal(t, "2.3s", FormatDuration(ms(2345)))
}

func TestResults(t *testing.T) {
	resp := &app.TestResultsResponse{
		Results: []app.TestResult{
			{ID: "1", Name: "api_smoke.py", Status: app.StatusPass, Output: "\x1b[32mok\x1b[0m\nall good", Duration: ms(820)},
			{ID: "2", Name: "login_flow.py", Status: app.StatusFail, Output: strings.Repeat("x", 200), Duration: ms(4100)},
		},
		TotalTests:  2,
		PassedTests: 1,
		FailedTests: 1,
		LastUpdated: "2025-01-02T03:04:05.000Z",
	}

	var buf bytes.Buffer
	Results(&buf, resp)
	out := buf.String()

	assert.Contains(t, out, "api_smoke.py")
	assert.Contains(t, out, "ok all good")
	assert.NotContains(t, out, "\x1b[32m")
	assert.Contains(t, out, "820ms")
	assert.Contains(t, out, "4.1s")
	assert.Contains(t, out, "1 passed / 1 failed")
	assert.Contains(t, out, "50% pass rate")
}

func TestResultsEmpty(t *testing.T) {
	var buf bytes.Buffer
	Results(&buf, nil)
	assert.Contains(t, buf.String(), "Test Results")
}

func TestRuns(t *testing.T) {
	var buf bytes.Buffer
	Runs(&buf, []history.Entry{
		{RunID: "run-1735787045000", RecordedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), Total: 4, Passed: 3, Failed: 1},
	})
	out := buf.String()
	assert.Contains(t, out, "run-1735787045000")
	assert.Contains(t, out, "2025-01-02T03:04:05.000Z")
	assert.Contains(t, out, "75%")
}

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "a b c", singleLine("a\n b\t\tc"))
	assert.Equal(t, strings.Repeat("y", OutputWidth)+"...", singleLine(strings.Repeat("y", 120)))
}
