package worker

import (
	"context"
	"log"
	"time"

	"github.com/testrunner/dashboard/internal/app"
	"github.com/testrunner/dashboard/internal/metrics"
)

const DefaultInterval = 1 * time.Minute

// Worker periodically probes the test backend and exports its reachability.
type Worker struct {
	api      app.Backend
	interval time.Duration
	onProbe  func(up bool)

	up   bool
	seen bool
}

func NewWorker(api app.Backend, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{
		api:      api,
		interval: interval,
		onProbe:  metrics.RecordHealth,
	}
}

// Start probes once immediately and then on every tick until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	log.Printf("worker: starting health probe interval=%s", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("worker: stopping")
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *Worker) probe(ctx context.Context) {
	up := w.api.Health(ctx)
	if ctx.Err() != nil {
		return
	}
	w.onProbe(up)

	// only log transitions
	if !w.seen || up != w.up {
		if up {
			log.Println("worker: test backend is reachable")
		} else {
			log.Println("worker: test backend is unreachable")
		}
	}
	w.seen = true
	w.up = up
}
