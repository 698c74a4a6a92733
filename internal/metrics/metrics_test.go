package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/testrunner/dashboard/internal/app"
)

func TestErrToLabel(t *testing.T) {
	assert.Equal(t, "nil", errToLabel(nil))
	assert.Equal(t, "failed_to_fetch_available_tests", errToLabel(errors.New("Failed to fetch available tests")))
	assert.Equal(t, "api_returned", errToLabel(errors.New("API returned 503: ")))
}

func TestRecordResults(t *testing.T) {
	RecordResults(&app.TestResultsResponse{TotalTests: 5, PassedTests: 3, FailedTests: 2})

	assert.Equal(t, 5.0, testutil.ToFloat64(resultsGauge.WithLabelValues("total")))
	assert.Equal(t, 3.0, testutil.ToFloat64(resultsGauge.WithLabelValues("passed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(resultsGauge.WithLabelValues("failed")))

	RecordResults(nil)
	assert.Equal(t, 5.0, testutil.ToFloat64(resultsGauge.WithLabelValues("total")))
}

func TestRecordTestRun(t *testing.T) {
	before := testutil.ToFloat64(testRunsTotal.WithLabelValues("skipped"))
	RecordTestRun(app.Skipped("nope"))
	assert.Equal(t, before+1, testutil.ToFloat64(testRunsTotal.WithLabelValues("skipped")))

	before = testutil.ToFloat64(testRunsTotal.WithLabelValues("pass"))
	RecordTestRun(app.Ran(app.TestResult{Status: app.StatusPass}))
	assert.Equal(t, before+1, testutil.ToFloat64(testRunsTotal.WithLabelValues("pass")))
}

func TestRecordBatch(t *testing.T) {
	before := testutil.ToFloat64(batchRunsTotal.WithLabelValues("failure"))
	RecordBatch(errors.New("No tests available to run"), 0)
	assert.Equal(t, before+1, testutil.ToFloat64(batchRunsTotal.WithLabelValues("failure")))

	RecordBatch(nil, 1500*time.Millisecond)
	assert.Equal(t, 1.5, testutil.ToFloat64(batchDuration))
}

func TestRecordHealth(t *testing.T) {
	RecordHealth(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(backendUp))
	RecordHealth(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(backendUp))
}
