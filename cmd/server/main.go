package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/testrunner/dashboard/internal/app"
	"github.com/testrunner/dashboard/internal/backend"
	"github.com/testrunner/dashboard/internal/config"
	"github.com/testrunner/dashboard/internal/dashboard"
	"github.com/testrunner/dashboard/internal/history"
	"github.com/testrunner/dashboard/internal/metrics"
	"github.com/testrunner/dashboard/internal/server"
	"github.com/testrunner/dashboard/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	api := backend.FromConfig(cfg)

	store, err := history.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open run history: %v", err)
	}
	defer store.Close()
	if cfg.Database.URL == "" {
		log.Println("Run history is kept in memory (DATABASE_URL not set)")
	}

	dash := dashboard.New(api, dashboard.Options{
		Pause:        cfg.TestPause,
		RefreshDelay: cfg.RefreshDelay,
		Hooks: dashboard.Hooks{
			OnResults:    metrics.RecordResults,
			OnTestResult: func(name string, outcome app.RunOutcome) { metrics.RecordTestRun(outcome) },
			OnBatchDone: func(resp *app.TestRunResponse, err error, elapsed time.Duration) {
				metrics.RecordBatch(err, elapsed)
				metrics.RecordErrorDetails("run_tests", err)
			},
			OnRunSettled: func(run *app.TestRunResponse, results *app.TestResultsResponse) {
				recordRun(store, run, results)
			},
		},
	})
	dash.Start()

	rootDir := cfg.RootDir
	if rootDir == "" {
		rootDir, err = os.Getwd()
		if err != nil {
			log.Fatalf("Failed to get current working directory: %v", err)
		}
	}

	srv := server.NewServer(dash, api, store, rootDir)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting Test Automation Dashboard on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		worker.NewWorker(api, cfg.HealthInterval).Start(gCtx)
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
		}
		dash.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
	log.Println("Server stopped.")
}

// recordRun stores the results snapshot taken once a batch run has settled.
func recordRun(store history.Store, run *app.TestRunResponse, results *app.TestResultsResponse) {
	if run == nil || results == nil {
		return
	}
	entry := history.Entry{
		ID:         uuid.NewString(),
		RunID:      run.RunID,
		Message:    run.Message,
		RecordedAt: time.Now().UTC(),
		Total:      results.TotalTests,
		Passed:     results.PassedTests,
		Failed:     results.FailedTests,
	}
	if started, err := time.Parse(time.RFC3339Nano, run.Timestamp); err == nil {
		entry.StartedAt = started
	} else {
		entry.StartedAt = entry.RecordedAt
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.InsertRun(ctx, entry); err != nil {
		log.Printf("history.insert_run: failed run_id=%s error=%v", run.RunID, err)
		metrics.RecordErrorDetails("history_insert", err)
	}
}
