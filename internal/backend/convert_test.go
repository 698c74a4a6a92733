package backend

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/testrunner/dashboard/internal/app"
)

func int64Ptr(v int64) *int64 { return &v }

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		record   Record
		expected string
	}{
		{"no error output", Record{Output: "all good"}, "all good"},
		{"with error output", Record{Output: "step 1", ErrorOutput: "boom"}, "step 1\n\nError: boom"},
		{"empty output with error", Record{ErrorOutput: "boom"}, "\n\nError: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.record
			rec.ID = "abc"
			rec.TestName = "login.py"
			rec.Status = app.StatusFail
			rec.Timestamp = "2025-01-02T03:04:05.000Z"
			rec.Duration = int64Ptr(1234)
			rec.ScriptType = "python"

			res := Convert(rec)
			assert.Equal(t, "abc", res.ID)
			assert.Equal(t, "login.py", res.Name)
			assert.Equal(t, app.StatusFail, res.Status)
			assert.Equal(t, "2025-01-02T03:04:05.000Z", res.Timestamp)
			assert.Equal(t, tt.expected, res.Output)
			if assert.NotNil(t, res.Duration) {
				assert.Equal(t, int64(1234), *res.Duration)
			}
		})
	}
}

func TestConvertPassesUnknownStatusThrough(t *testing.T) {
	res := Convert(Record{ID: "1", Status: app.Status("SKIPPED")})
	assert.Equal(t, app.Status("SKIPPED"), res.Status)
	assert.Nil(t, res.Duration)
}

func TestSummarize(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	results := []app.TestResult{
		{ID: "1", Status: app.StatusPass},
		{ID: "2", Status: app.StatusFail},
		{ID: "3", Status: app.StatusError},
		{ID: "4", Status: app.StatusPass},
		{ID: "5", Status: app.StatusError},
	}

	resp := Summarize(results, now)
	assert.Equal(t, 5, resp.TotalTests)
	assert.Equal(t, 2, resp.PassedTests)
	assert.Equal(t, 3, resp.FailedTests)
	assert.Equal(t, resp.TotalTests, resp.PassedTests+resp.FailedTests)
	assert.Equal(t, "2025-03-04T05:06:07.008Z", resp.LastUpdated)
	assert.Len(t, resp.Results, 5)
}

func TestSummarizeRunningNotCounted(t *testing.T) {
	resp := Summarize([]app.TestResult{{Status: app.StatusRunning}, {Status: app.StatusPass}}, time.Now())
	assert.Equal(t, 2, resp.TotalTests)
	assert.Equal(t, 1, resp.PassedTests)
	assert.Equal(t, 0, resp.FailedTests)
}

func TestSummarizeEmpty(t *testing.T) {
	resp := Summarize(nil, time.Now())
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.TotalTests)
	assert.Zero(t, resp.PassedTests)
	assert.Zero(t, resp.FailedTests)
}

func TestTruncateOutput(t *testing.T) {
	long := strings.Repeat("x", 150)

	tests := []struct {
		input    string
		max      int
		expected string
	}{
		{"short", 100, "short"},
		{strings.Repeat("a", 100), 100, strings.Repeat("a", 100)},
		{long, 100, strings.Repeat("x", 100) + "..."},
		{"abc", 0, "..."},
		{"abc", -5, "..."},
		{"", 0, ""},
		{"abcdefghij", 4, "abcd..."},
		{"", 10, ""},
		{"héllo wörld", 5, "héllo..."},
	}

	for _, tt := range tests {
		result := TruncateOutput(tt.input, tt.max)
		if result != tt.expected {
			t.Errorf("TruncateOutput(%q, %d) = %q, expected %q", tt.input, tt.max, result, tt.expected)
		}
	}
}

func TestTruncateDefault(t *testing.T) {
	long := strings.Repeat("x", 150)
	assert.Equal(t, strings.Repeat("x", DefaultTruncateLength)+"...", TruncateDefault(long))
	assert.Equal(t, "short", TruncateDefault("short"))
}

func TestTruncateOutputLength(t *testing.T) {
	for limit := 0; limit < 40; limit++ {
		for size := 0; size < 60; size++ {
			s := strings.Repeat("z", size)
			out := TruncateOutput(s, limit)
			if size <= limit {
				assert.Equal(t, s, out)
				continue
			}
			assert.Len(t, out, limit+3)
			assert.True(t, strings.HasPrefix(out, s[:limit]))
		}
	}
}
