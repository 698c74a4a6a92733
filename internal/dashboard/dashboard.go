package dashboard

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/testrunner/dashboard/internal/app"
	"github.com/testrunner/dashboard/internal/backend"
)

// ErrBusy is returned when an operation is triggered while the same operation
// is still in flight.
var ErrBusy = errors.New("operation already in progress")

const (
	msgLoadFailed  = "Failed to load test results"
	msgRunFailed   = "Failed to run tests"
	msgClearFailed = "Failed to clear test results"
)

// Hooks are optional callbacks fired on state transitions.
type Hooks struct {
	OnResults    func(resp *app.TestResultsResponse)
	OnTestResult func(name string, outcome app.RunOutcome)
	OnBatchDone  func(resp *app.TestRunResponse, err error, elapsed time.Duration)
	OnRunSettled func(run *app.TestRunResponse, results *app.TestResultsResponse)
}

type Options struct {
	Pause        time.Duration
	RefreshDelay time.Duration
	Hooks        Hooks
}

// Snapshot is a copy of the dashboard state at one point in time.
type Snapshot struct {
	Results        *app.TestResultsResponse `json:"results"`
	LoadingResults bool                     `json:"loadingResults"`
	RunningTests   bool                     `json:"runningTests"`
	Error          string                   `json:"error,omitempty"`
	LastRun        *app.TestRunResponse     `json:"lastRun,omitempty"`
	Progress       *Progress                `json:"progress,omitempty"`
}

// Progress tracks the batch currently running.
type Progress struct {
	RunID     string `json:"runId"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Current   string `json:"current,omitempty"`
}

// Dashboard sequences backend calls and keeps the state rendered by the view.
type Dashboard struct {
	backend      app.Backend
	pause        time.Duration
	refreshDelay time.Duration
	hooks        Hooks

	mu           sync.Mutex
	results      *app.TestResultsResponse
	loads        int // fetches in flight
	loadSeq      uint64
	storedSeq    uint64
	runningTests bool
	errMsg       string
	lastRun      *app.TestRunResponse
	progress     *Progress

	// background work outlives the request that triggered it
	baseCtx context.Context
	cancel  context.CancelFunc
	timers  map[*time.Timer]struct{}
	wg      sync.WaitGroup
}

func New(b app.Backend, opts Options) *Dashboard {
	if opts.Pause <= 0 {
		opts.Pause = backend.DefaultPause
	}
	if opts.RefreshDelay < 0 {
		opts.RefreshDelay = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dashboard{
		backend:      b,
		pause:        opts.Pause,
		refreshDelay: opts.RefreshDelay,
		hooks:        opts.Hooks,
		baseCtx:      ctx,
		cancel:       cancel,
		timers:       make(map[*time.Timer]struct{}),
	}
}

// Start performs the initial results fetch in the background.
func (d *Dashboard) Start() {
	d.goBackground(func(ctx context.Context) {
		if err := d.LoadResults(ctx); err != nil && !errors.Is(err, ErrBusy) {
			log.Printf("dashboard.start: initial load failed: %v", err)
		}
	})
}

// Snapshot returns a copy of the current state.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{
		Results:        d.results,
		LoadingResults: d.loads > 0,
		RunningTests:   d.runningTests,
		Error:          d.errMsg,
		LastRun:        d.lastRun,
	}
	if d.progress != nil {
		p := *d.progress
		s.Progress = &p
	}
	return s
}

// LoadResults fetches the aggregate and stores either it or an error
// message. The returned error is only ErrBusy or the backend failure that was
// already recorded in the state.
func (d *Dashboard) LoadResults(ctx context.Context) error {
	_, err := d.fetchResults(ctx, true)
	return err
}

// fetchResults loads the aggregate. Guarded fetches are refused while another
// fetch is in flight. Follow-up fetches after a run or a clear are not
// guarded; when fetches overlap only the most recently started one is stored.
func (d *Dashboard) fetchResults(ctx context.Context, guarded bool) (*app.TestResultsResponse, error) {
	d.mu.Lock()
	if guarded && d.loads > 0 {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	d.loads++
	d.loadSeq++
	seq := d.loadSeq
	d.errMsg = ""
	d.mu.Unlock()

	resp, err := d.backend.Results(ctx)

	d.mu.Lock()
	d.loads--
	stale := seq < d.storedSeq
	if !stale {
		d.storedSeq = seq
		if err != nil {
			d.errMsg = messageFor(err, msgLoadFailed)
		} else {
			d.results = resp
		}
	}
	d.mu.Unlock()

	if err != nil {
		log.Printf("dashboard.load_results: failed stale=%t error=%v", stale, err)
		return nil, err
	}
	if stale {
		log.Printf("dashboard.load_results: discarding superseded results")
		return resp, nil
	}
	if d.hooks.OnResults != nil {
		d.hooks.OnResults(resp)
	}
	return resp, nil
}

// RunTests executes the whole batch and blocks until it settles. On success a
// results refresh is scheduled after the refresh delay.
func (d *Dashboard) RunTests(ctx context.Context) error {
	if err := d.beginRun(); err != nil {
		return err
	}
	return d.runBatch(ctx)
}

// RunTestsAsync starts the batch in the background and returns immediately.
func (d *Dashboard) RunTestsAsync() error {
	if err := d.beginRun(); err != nil {
		return err
	}
	d.goBackground(func(ctx context.Context) {
		d.runBatch(ctx)
	})
	return nil
}

func (d *Dashboard) beginRun() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.runningTests {
		return ErrBusy
	}
	d.runningTests = true
	d.errMsg = ""
	d.lastRun = nil
	d.progress = nil
	return nil
}

func (d *Dashboard) runBatch(ctx context.Context) error {
	started := time.Now()
	resp, err := backend.RunBatch(ctx, d.backend, backend.BatchOptions{
		Pause: d.pause,
		OnStart: func(runID string, tests []string) {
			d.mu.Lock()
			d.progress = &Progress{RunID: runID, Total: len(tests)}
			d.mu.Unlock()
		},
		OnResult: func(name string, outcome app.RunOutcome) {
			d.mu.Lock()
			if d.progress != nil {
				d.progress.Completed++
				d.progress.Current = name
			}
			d.mu.Unlock()
			if d.hooks.OnTestResult != nil {
				d.hooks.OnTestResult(name, outcome)
			}
		},
	})
	elapsed := time.Since(started)

	d.mu.Lock()
	d.runningTests = false
	d.progress = nil
	if err != nil {
		d.errMsg = messageFor(err, msgRunFailed)
	} else {
		d.lastRun = resp
	}
	d.mu.Unlock()

	if d.hooks.OnBatchDone != nil {
		d.hooks.OnBatchDone(resp, err, elapsed)
	}
	if err != nil {
		log.Printf("dashboard.run_tests: failed error=%v", err)
		return err
	}

	log.Printf("dashboard.run_tests: %s run_id=%s", resp.Message, resp.RunID)
	d.scheduleRefresh(resp)
	return nil
}

// scheduleRefresh re-fetches results once the backend has had time to settle.
func (d *Dashboard) scheduleRefresh(run *app.TestRunResponse) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.baseCtx.Err() != nil {
		return
	}

	var timer *time.Timer
	d.wg.Add(1)
	timer = time.AfterFunc(d.refreshDelay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		delete(d.timers, timer)
		d.mu.Unlock()

		results, err := d.fetchResults(d.baseCtx, false)
		if err != nil {
			return
		}
		if d.hooks.OnRunSettled != nil {
			d.hooks.OnRunSettled(run, results)
		}
	})
	d.timers[timer] = struct{}{}
}

// ClearResults deletes all stored results and reloads on success.
func (d *Dashboard) ClearResults(ctx context.Context) error {
	d.mu.Lock()
	d.errMsg = ""
	d.mu.Unlock()

	if err := d.backend.ClearResults(ctx); err != nil {
		d.mu.Lock()
		d.errMsg = messageFor(err, msgClearFailed)
		d.mu.Unlock()
		log.Printf("dashboard.clear_results: failed error=%v", err)
		return err
	}

	_, err := d.fetchResults(ctx, false)
	return err
}

// Close stops pending refreshes and cancels background work, then waits for
// it to finish.
func (d *Dashboard) Close() {
	d.cancel()

	d.mu.Lock()
	for t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, t)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dashboard) goBackground(fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn(d.baseCtx)
	}()
}

func messageFor(err error, fallback string) string {
	if apiErr, ok := app.AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
