package backend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testrunner/dashboard/internal/app"
)

// stubBackend records the calls made by RunBatch.
type stubBackend struct {
	mu      sync.Mutex
	tests   []string
	listErr error
	skip    map[string]bool
	ran     []string
	onRun   func(name string)
}

func (s *stubBackend) ListTests(ctx context.Context) ([]string, error) {
	return s.tests, s.listErr
}

func (s *stubBackend) RunTest(ctx context.Context, name string) app.RunOutcome {
	s.mu.Lock()
	s.ran = append(s.ran, name)
	s.mu.Unlock()
	if s.onRun != nil {
		s.onRun(name)
	}
	if s.skip[name] {
		return app.Skipped("backend reported failure")
	}
	return app.Ran(app.TestResult{ID: name + "-id", Name: name, Status: app.StatusPass})
}

func (s *stubBackend) Results(ctx context.Context) (*app.TestResultsResponse, error) {
	return Summarize(nil, time.Now()), nil
}

func (s *stubBackend) ResultsByName(ctx context.Context, name string) ([]app.TestResult, error) {
	return nil, nil
}

func (s *stubBackend) ClearResults(ctx context.Context) error { return nil }

func (s *stubBackend) Health(ctx context.Context) bool { return true }

func TestRunBatch_SkipsFailedTest(t *testing.T) {
	stub := &stubBackend{tests: []string{"A", "B", "C"}, skip: map[string]bool{"B": true}}
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	var seen []string
	resp, err := RunBatch(context.Background(), stub, BatchOptions{
		Pause: time.Millisecond,
		Clock: func() time.Time { return start },
		OnResult: func(name string, outcome app.RunOutcome) {
			seen = append(seen, name)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Test run completed successfully. 2/3 tests executed.", resp.Message)
	assert.Equal(t, "run-1735787045000", resp.RunID)
	assert.Equal(t, "2025-01-02T03:04:05.000Z", resp.Timestamp)
	assert.Equal(t, []string{"A", "B", "C"}, stub.ran)
	assert.Equal(t, []string{"A", "B", "C"}, seen)
}

func TestRunBatch_NoTests(t *testing.T) {
	stub := &stubBackend{tests: []string{}}

	_, err := RunBatch(context.Background(), stub, BatchOptions{Pause: time.Millisecond})
	apiErr, ok := app.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "No tests available to run", apiErr.Message)
	assert.Equal(t, 500, apiErr.Status)
	assert.Empty(t, stub.ran)
}

func TestRunBatch_ListFails(t *testing.T) {
	cause := app.NewAPIError("Failed to fetch available tests", errors.New("refused"))
	stub := &stubBackend{listErr: cause}

	_, err := RunBatch(context.Background(), stub, BatchOptions{Pause: time.Millisecond})
	apiErr, ok := app.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Failed to initiate test run", apiErr.Message)
	assert.Equal(t, 500, apiErr.Status)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, stub.ran)

	stub = &stubBackend{listErr: errors.New("plain failure")}
	_, err = RunBatch(context.Background(), stub, BatchOptions{Pause: time.Millisecond})
	apiErr, ok = app.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Failed to initiate test run", apiErr.Message)
}

func TestRunBatch_StartTimeCapturedBeforeRuns(t *testing.T) {
	var clockCalls int
	var clockCallsAtFirstRun int
	stub := &stubBackend{tests: []string{"A", "B"}}
	stub.onRun = func(name string) {
		if name == "A" {
			clockCallsAtFirstRun = clockCalls
		}
	}

	_, err := RunBatch(context.Background(), stub, BatchOptions{
		Pause: time.Millisecond,
		Clock: func() time.Time { clockCalls++; return time.Now() },
	})
	require.NoError(t, err)
	assert.Equal(t, 1, clockCallsAtFirstRun)
}

func TestRunBatch_PausesBetweenTests(t *testing.T) {
	var times []time.Time
	stub := &stubBackend{tests: []string{"A", "B", "C"}}
	stub.onRun = func(string) { times = append(times, time.Now()) }

	_, err := RunBatch(context.Background(), stub, BatchOptions{Pause: 20 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, times, 3)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, times[2].Sub(times[1]), 20*time.Millisecond)
}

func TestRunBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubBackend{tests: []string{"A", "B", "C"}}
	stub.onRun = func(name string) {
		if name == "A" {
			cancel()
		}
	}

	_, err := RunBatch(ctx, stub, BatchOptions{Pause: time.Second})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"A"}, stub.ran)
}

func TestRunBatch_MockClient(t *testing.T) {
	mock := NewMockClientWithTests([]MockTest{
		{Name: "one", Status: app.StatusPass},
		{Name: "two", Status: app.StatusFail, Unavailable: true},
		{Name: "three", Status: app.StatusError, ErrorOutput: "bad"},
	})

	resp, err := RunBatch(context.Background(), mock, BatchOptions{Pause: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "Test run completed successfully. 2/3 tests executed.", resp.Message)

	results, err := mock.Results(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, results.TotalTests)
	assert.Equal(t, 1, results.PassedTests)
	assert.Equal(t, 1, results.FailedTests)
}
