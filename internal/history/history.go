package history

import (
	"context"
	"fmt"
	"time"
)

// Entry is one completed batch run together with the results snapshot taken
// after it settled.
type Entry struct {
	ID         string    `json:"id"`
	RunID      string    `json:"runId"`
	Message    string    `json:"message"`
	StartedAt  time.Time `json:"startedAt"`
	RecordedAt time.Time `json:"recordedAt"`
	Total      int       `json:"total"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
}

// PassRate returns the pass percentage of the snapshot (0-100).
func (e Entry) PassRate() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Passed) / float64(e.Total) * 100
}

// Store keeps the run history shown on the dashboard.
type Store interface {
	InsertRun(ctx context.Context, e Entry) error
	// RecentRuns returns at most limit entries, newest first.
	RecentRuns(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Open returns the store for the given driver. An empty DSN keeps history
// in memory.
func Open(driver, dsn string) (Store, error) {
	if dsn == "" {
		return NewMemoryStore(), nil
	}
	switch driver {
	case "", "postgres":
		return NewSQLStore("postgres", dsn)
	case "mysql":
		return NewSQLStore("mysql", dsn)
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}
}
