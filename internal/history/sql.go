package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

type SQLStore struct {
	db      *sql.DB
	dialect string
}

func NewSQLStore(dialect, dsn string) (*SQLStore, error) {
	if dialect == "mysql" {
		// DATETIME columns are scanned into time.Time
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.InitSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLStore) InitSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS test_runs (
			id VARCHAR(64) PRIMARY KEY,
			run_id VARCHAR(64) NOT NULL,
			message TEXT,
			started_at TIMESTAMP NOT NULL,
			recorded_at TIMESTAMP NOT NULL,
			total_tests INTEGER NOT NULL DEFAULT 0,
			passed_tests INTEGER NOT NULL DEFAULT 0,
			failed_tests INTEGER NOT NULL DEFAULT 0
		)`,
	}
	if s.dialect == "postgres" {
		queries = append(queries, `CREATE INDEX IF NOT EXISTS idx_test_runs_recorded ON test_runs(recorded_at DESC)`)
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}

	return nil
}

func (s *SQLStore) InsertRun(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO test_runs (id, run_id, message, started_at, recorded_at, total_tests, passed_tests, failed_tests)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), e.ID, e.RunID, e.Message, e.StartedAt.UTC(), e.RecordedAt.UTC(), e.Total, e.Passed, e.Failed)
	return err
}

func (s *SQLStore) RecentRuns(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, run_id, message, started_at, recorded_at, total_tests, passed_tests, failed_tests
		FROM test_runs
		ORDER BY recorded_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var message sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &message, &e.StartedAt, &e.RecordedAt, &e.Total, &e.Passed, &e.Failed); err != nil {
			return nil, err
		}
		e.Message = message.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
