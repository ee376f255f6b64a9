// Package statestore persists the schedule anchor and break history in
// SQLite, so a restarted daemon resumes its cycle instead of starting a fresh
// interval.
package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoState is returned by LoadSchedule when nothing was saved yet.
var ErrNoState = errors.New("statestore: no saved schedule")

// historyKeep bounds the break history table.
const historyKeep = 500

// ScheduleState is the persisted part of the schedule.
type ScheduleState struct {
	Anchor     time.Time
	ConfigHash string
	SavedAt    time.Time
}

// BreakRecord is one completed break cycle.
type BreakRecord struct {
	BreakID   string
	StartedAt time.Time
	EndedAt   time.Time
	Outcome   string // completed|skipped|degraded
	Degraded  bool
}

// Store is a SQLite-backed state store. Use ":memory:" for tests.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (and creates) the database. A file path gets its parent
// directory created first.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedule_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		anchor INTEGER NOT NULL,
		config_hash TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS break_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		break_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_break_started ON break_history(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSchedule upserts the single schedule row.
func (s *Store) SaveSchedule(ctx context.Context, st ScheduleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	savedAt := st.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_state (id, anchor, config_hash, saved_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			anchor = excluded.anchor,
			config_hash = excluded.config_hash,
			saved_at = excluded.saved_at`,
		st.Anchor.Unix(), st.ConfigHash, savedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

// LoadSchedule returns the saved schedule, or ErrNoState.
func (s *Store) LoadSchedule(ctx context.Context) (ScheduleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var anchor, savedAt int64
	var st ScheduleState
	err := s.db.QueryRowContext(ctx,
		"SELECT anchor, config_hash, saved_at FROM schedule_state WHERE id = 1",
	).Scan(&anchor, &st.ConfigHash, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ScheduleState{}, ErrNoState
	}
	if err != nil {
		return ScheduleState{}, fmt.Errorf("load schedule: %w", err)
	}
	st.Anchor = time.Unix(anchor, 0).UTC()
	st.SavedAt = time.Unix(savedAt, 0).UTC()
	return st, nil
}

// RecordBreak appends one break outcome to the history.
func (s *Store) RecordBreak(ctx context.Context, r BreakRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	degraded := 0
	if r.Degraded {
		degraded = 1
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO break_history (break_id, started_at, ended_at, outcome, degraded) VALUES (?, ?, ?, ?, ?)",
		r.BreakID, r.StartedAt.Unix(), r.EndedAt.Unix(), r.Outcome, degraded,
	)
	if err != nil {
		return fmt.Errorf("record break: %w", err)
	}
	return nil
}

// RecentBreaks returns the newest break records, newest first.
func (s *Store) RecentBreaks(ctx context.Context, limit int) ([]BreakRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT break_id, started_at, ended_at, outcome, degraded FROM break_history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query break history: %w", err)
	}
	defer rows.Close()

	var out []BreakRecord
	for rows.Next() {
		var r BreakRecord
		var started, ended int64
		var degraded int
		if err := rows.Scan(&r.BreakID, &started, &ended, &r.Outcome, &degraded); err != nil {
			return nil, fmt.Errorf("scan break record: %w", err)
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		r.EndedAt = time.Unix(ended, 0).UTC()
		r.Degraded = degraded != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate break history: %w", err)
	}
	return out, nil
}

// Prune trims the history to its retention bound. Run periodically.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM break_history WHERE id NOT IN (
			SELECT id FROM break_history ORDER BY id DESC LIMIT ?
		)`, historyKeep)
	if err != nil {
		return 0, fmt.Errorf("prune break history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
