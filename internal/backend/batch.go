package backend

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/testrunner/dashboard/internal/app"
)

// DefaultPause is the wait after each test in a batch run.
const DefaultPause = 500 * time.Millisecond

// BatchOptions tunes RunBatch. Zero values use the defaults.
type BatchOptions struct {
	Pause time.Duration
	Clock func() time.Time
	// OnStart is called once the test list is known, before any test runs.
	OnStart func(runID string, tests []string)
	// OnResult is called after every test, skipped or not.
	OnResult func(name string, outcome app.RunOutcome)
}

// RunBatch lists the available tests and runs them one at a time, pausing
// after each. A test that produces no result is counted as unsuccessful and
// the batch continues. Only a failed listing, an empty test list or a
// cancelled context abort the batch.
func RunBatch(ctx context.Context, backend app.Backend, opts BatchOptions) (*app.TestRunResponse, error) {
	pause := opts.Pause
	if pause <= 0 {
		pause = DefaultPause
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	log.Printf("backend.run_batch: starting test execution")

	tests, err := backend.ListTests(ctx)
	if err != nil {
		log.Printf("backend.run_batch: listing tests failed error=%v", err)
		return nil, app.NewAPIError("Failed to initiate test run", err)
	}
	if len(tests) == 0 {
		return nil, app.NewAPIError("No tests available to run", nil)
	}

	start := clock()
	runID := fmt.Sprintf("run-%d", start.UnixMilli())
	if opts.OnStart != nil {
		opts.OnStart(runID, tests)
	}

	log.Printf("backend.run_batch: running run_id=%s tests=%d", runID, len(tests))

	successful := 0
	for _, name := range tests {
		log.Printf("backend.run_batch: running test name=%s", name)
		outcome := backend.RunTest(ctx, name)
		if outcome.OK {
			successful++
		}
		if opts.OnResult != nil {
			opts.OnResult(name, outcome)
		}

		if err := sleep(ctx, pause); err != nil {
			log.Printf("backend.run_batch: cancelled run_id=%s error=%v", runID, err)
			return nil, app.NewAPIError("Test run cancelled", err)
		}
	}

	log.Printf("backend.run_batch: completed run_id=%s successful=%d total=%d", runID, successful, len(tests))

	return &app.TestRunResponse{
		Message:   fmt.Sprintf("Test run completed successfully. %d/%d tests executed.", successful, len(tests)),
		RunID:     runID,
		Timestamp: FormatTimestamp(start),
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
