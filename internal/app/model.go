package app

import (
	"errors"
	"math"
)

// Status is the outcome reported by the test-execution backend for a test
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusError   Status = "ERROR"
	StatusRunning Status = "RUNNING"
)

// IsFailure reports whether the status counts towards the failed total.
// FAIL and ERROR are folded together.
func (s Status) IsFailure() bool {
	return s == StatusFail || s == StatusError
}

// TestResult is a single test execution as shown on the dashboard
type TestResult struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
	Output    string `json:"output"`
	Duration  *int64 `json:"duration,omitempty"` // milliseconds
}

// TestRunResponse summarises a completed batch run
type TestRunResponse struct {
	Message   string `json:"message"`
	RunID     string `json:"runId"`
	Timestamp string `json:"timestamp"`
}

// TestResultsResponse is the aggregate view over every stored result
type TestResultsResponse struct {
	Results     []TestResult `json:"results"`
	TotalTests  int          `json:"totalTests"`
	PassedTests int          `json:"passedTests"`
	FailedTests int          `json:"failedTests"`
	LastUpdated string       `json:"lastUpdated"`
}

// PassRate returns the rounded pass percentage, 0 when there are no results.
func (r *TestResultsResponse) PassRate() int {
	if r == nil || r.TotalTests == 0 {
		return 0
	}
	return int(math.Round(float64(r.PassedTests) / float64(r.TotalTests) * 100))
}

// APIError is the single error shape produced at the backend boundary.
type APIError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`

	cause error
}

func NewAPIError(message string, cause error) *APIError {
	return &APIError{Message: message, Status: 500, cause: cause}
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// AsAPIError extracts an APIError from err, if there is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// RunOutcome is the result of running one test. A skipped outcome means the
// backend did not produce a result; batch runs count it as unsuccessful and
// carry on with the next test.
type RunOutcome struct {
	Result TestResult
	OK     bool
	Reason string
}

func Ran(result TestResult) RunOutcome {
	return RunOutcome{Result: result, OK: true}
}

func Skipped(reason string) RunOutcome {
	return RunOutcome{Reason: reason}
}
