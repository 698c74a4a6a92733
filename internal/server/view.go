package server

import (
	"html/template"
	"time"
	"unicode/utf8"

	"github.com/acarl005/stripansi"
	"github.com/testrunner/dashboard/internal/app"
	"github.com/testrunner/dashboard/internal/backend"
	"github.com/testrunner/dashboard/internal/report"
)

// outputPreviewLength is the number of characters of test output shown
// before the row offers to expand.
const outputPreviewLength = 80

const displayLayout = "Jan 2, 2006 15:04:05"

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration":  report.FormatDuration,
		"formatTimestamp": formatTimestamp,
		"statusClass":     statusClass,
		"preview":         preview,
		"expandable":      expandable,
		"cleanOutput":     stripansi.Strip,
	}
}

// formatTimestamp renders a backend timestamp in local time. Unparseable
// values are returned as-is.
func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format(displayLayout)
}

func statusClass(s app.Status) string {
	if s == app.StatusPass {
		return "pass"
	}
	return "fail"
}

func preview(output string) string {
	return backend.TruncateOutput(stripansi.Strip(output), outputPreviewLength)
}

func expandable(output string) bool {
	return utf8.RuneCountInString(stripansi.Strip(output)) > outputPreviewLength
}
