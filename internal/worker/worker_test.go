package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/testrunner/dashboard/internal/app"
)

type healthBackend struct {
	app.Backend
	mu sync.Mutex
	up []bool
}

func (h *healthBackend) Health(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.up) == 0 {
		return true
	}
	up := h.up[0]
	h.up = h.up[1:]
	return up
}

func TestWorkerProbes(t *testing.T) {
	b := &healthBackend{up: []bool{false, true}}
	w := NewWorker(b, 5*time.Millisecond)

	var mu sync.Mutex
	var probes []bool
	w.onProbe = func(up bool) {
		mu.Lock()
		probes = append(probes, up)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(probes) >= 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false, true, true}, probes[:3])
}

func TestNewWorkerDefaultInterval(t *testing.T) {
	w := NewWorker(&healthBackend{}, 0)
	assert.Equal(t, DefaultInterval, w.interval)
}
