package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/testrunner/dashboard/internal/app"
	"github.com/testrunner/dashboard/internal/backend"
	"github.com/testrunner/dashboard/internal/history"
)

// OutputWidth is the number of output characters shown per row.
const OutputWidth = 80

// FormatDuration renders a duration in milliseconds. Missing and zero
// durations are shown as N/A.
func FormatDuration(ms *int64) string {
	if ms == nil || *ms == 0 {
		return "N/A"
	}
	if *ms < 1000 {
		return fmt.Sprintf("%dms", *ms)
	}
	return fmt.Sprintf("%.1fs", float64(*ms)/1000)
}

// Results writes the results table followed by the totals footer.
func Results(w io.Writer, resp *app.TestResultsResponse) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Test Results")

	t.AppendHeader(table.Row{"Test Name", "Status", "Duration", "Timestamp", "Output"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Output", WidthMax: OutputWidth, WidthMaxEnforcer: text.WrapSoft},
	})

	var results []app.TestResult
	if resp != nil {
		results = resp.Results
	}
	for _, r := range results {
		t.AppendRow(table.Row{
			r.Name,
			r.Status,
			FormatDuration(r.Duration),
			r.Timestamp,
			singleLine(r.Output),
		})
	}

	if resp != nil {
		t.AppendFooter(table.Row{
			"TOTAL",
			fmt.Sprintf("%d passed / %d failed", resp.PassedTests, resp.FailedTests),
			"",
			resp.LastUpdated,
			fmt.Sprintf("%d tests, %d%% pass rate", resp.TotalTests, resp.PassRate()),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	t.Render()
}

// Runs writes the run history table.
func Runs(w io.Writer, runs []history.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Run History")
	t.AppendHeader(table.Row{"Run ID", "Recorded", "Total", "Passed", "Failed", "Pass Rate"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Total", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Pass Rate", Align: text.AlignRight},
	})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.RunID,
			backend.FormatTimestamp(r.RecordedAt),
			r.Total,
			r.Passed,
			r.Failed,
			fmt.Sprintf("%.0f%%", r.PassRate()),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// Tests writes one test name per line.
func Tests(w io.Writer, tests []string) {
	for _, name := range tests {
		fmt.Fprintln(w, name)
	}
}

// singleLine strips colour codes, folds newlines and truncates the output
// so every result stays on one table row.
func singleLine(output string) string {
	s := stripansi.Strip(output)
	s = strings.Join(strings.Fields(s), " ")
	return backend.TruncateOutput(s, OutputWidth)
}
