// Package usage persists a minimal request counter and extraction
// token-usage log to a SQLite database (usage.db), in the same WAL-mode
// single-writer style as the teacher's FTS5 index.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Period selects a reporting window for Summary.
type Period string

const (
	PeriodToday Period = "today"
	Period7d    Period = "7d"
	Period30d   Period = "30d"
	PeriodAll   Period = "all"
)

// Summary is the aggregate reported by GET /usage.
type Summary struct {
	Period          string `json:"period"`
	RequestCount    int64  `json:"request_count"`
	ExtractionCount int64  `json:"extraction_count"`
	PromptTokens    int64  `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Store is a SQLite-backed counter log. A single connection is used
// throughout, matching the teacher's single-writer WAL pattern, since
// usage.db sees low-volume sequential writes rather than concurrent
// search traffic.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open creates or opens usage.db under dataDir in WAL mode.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("usage: create data dir: %w", err)
	}
	path := filepath.Join(dataDir, "usage.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("usage: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("usage: set pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		route TEXT NOT NULL,
		occurred_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_requests_occurred_at ON requests(occurred_at);

	CREATE TABLE IF NOT EXISTS extractions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prompt_tokens INTEGER NOT NULL,
		completion_tokens INTEGER NOT NULL,
		occurred_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_extractions_occurred_at ON extractions(occurred_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRequest logs one inbound HTTP request against route.
func (s *Store) RecordRequest(ctx context.Context, route string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("usage: store is closed")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests(route, occurred_at) VALUES (?, ?)`, route, time.Now().UTC())
	return err
}

// RecordExtraction logs one completed extraction job's token usage.
func (s *Store) RecordExtraction(ctx context.Context, promptTokens, completionTokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("usage: store is closed")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extractions(prompt_tokens, completion_tokens, occurred_at) VALUES (?, ?, ?)`,
		promptTokens, completionTokens, time.Now().UTC())
	return err
}

// Summary aggregates counters for the given period, as of now.
func (s *Store) Summary(ctx context.Context, period Period) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Summary{}, fmt.Errorf("usage: store is closed")
	}

	since, ok := periodStart(period, time.Now().UTC())

	result := Summary{Period: string(period)}

	reqQuery := `SELECT COUNT(*) FROM requests`
	extQuery := `SELECT COUNT(*), COALESCE(SUM(prompt_tokens),0), COALESCE(SUM(completion_tokens),0) FROM extractions`
	args := []any{}
	if ok {
		reqQuery += ` WHERE occurred_at >= ?`
		extQuery += ` WHERE occurred_at >= ?`
		args = append(args, since)
	}

	if err := s.db.QueryRowContext(ctx, reqQuery, args...).Scan(&result.RequestCount); err != nil {
		return Summary{}, fmt.Errorf("usage: count requests: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, extQuery, args...).Scan(
		&result.ExtractionCount, &result.PromptTokens, &result.CompletionTokens); err != nil {
		return Summary{}, fmt.Errorf("usage: aggregate extractions: %w", err)
	}
	return result, nil
}

// periodStart returns the lower bound for period relative to now, and
// false when the period is unbounded (all-time).
func periodStart(period Period, now time.Time) (time.Time, bool) {
	switch period {
	case PeriodToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	case Period7d:
		return now.AddDate(0, 0, -7), true
	case Period30d:
		return now.AddDate(0, 0, -30), true
	default:
		return time.Time{}, false
	}
}

// Close closes the underlying connection, checkpointing the WAL first.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
