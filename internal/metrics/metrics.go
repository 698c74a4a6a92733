package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/testrunner/dashboard/internal/app"
)

const (
	MetricsNamespace = "dashboard"
)

var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	batchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_runs_total",
		Help:      "Count of batch test runs",
	}, []string{
		"result",
	})

	testRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_runs_total",
		Help:      "Count of single test invocations by reported status",
	}, []string{
		"status",
	})

	batchDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "last_batch_duration_seconds",
		Help:      "Duration of the last completed batch run",
	})

	resultsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "results",
		Help:      "Aggregate counts from the last results fetch",
	}, []string{
		"result",
	})

	backendUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "backend_up",
		Help:      "Whether the last health check of the test backend succeeded",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ToLower(strings.TrimSpace(errClean))
	errClean = strings.ReplaceAll(errClean, " ", "_")
	for strings.Contains(errClean, "__") {
		errClean = strings.ReplaceAll(errClean, "__", "_")
	}
	return errClean
}

func RecordError(label string) {
	errorsTotal.WithLabelValues(label).Inc()
}

// RecordErrorDetails concats the cleaned error message to the label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	RecordError(fmt.Sprintf("%s.%s", label, errToLabel(err)))
}

func RecordBatch(err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	batchRunsTotal.WithLabelValues(result).Inc()
	if err == nil {
		batchDuration.Set(duration.Seconds())
	}
}

func RecordTestRun(outcome app.RunOutcome) {
	status := "skipped"
	if outcome.OK {
		status = strings.ToLower(string(outcome.Result.Status))
	}
	testRunsTotal.WithLabelValues(status).Inc()
}

func RecordResults(resp *app.TestResultsResponse) {
	if resp == nil {
		return
	}
	resultsGauge.WithLabelValues("total").Set(float64(resp.TotalTests))
	resultsGauge.WithLabelValues("passed").Set(float64(resp.PassedTests))
	resultsGauge.WithLabelValues("failed").Set(float64(resp.FailedTests))
}

func RecordHealth(up bool) {
	if up {
		backendUp.Set(1)
		return
	}
	backendUp.Set(0)
}
