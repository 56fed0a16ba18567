// Package history persists one row per documentation build in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

// Record is the persisted form of a build report.
type Record struct {
	BuildID    string
	StartedAt  time.Time
	Duration   time.Duration
	Dir        string
	Tool       string
	ConfigFile string
	Commit     string
	Branch     string
	Dirty      bool
	Outcome    string
	ExitCode   int
	Error      string
}

// Store implements build history on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (and creates) the database at path. Use ":memory:" for an
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, foundation.WrapError(err, foundation.CategoryStorage, "create history directory").
				WithContext("path", path).
				Build()
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, foundation.WrapError(err, foundation.CategoryStorage, "open sqlite database").
			WithContext("path", path).
			Build()
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, foundation.WrapError(err, foundation.CategoryStorage, "initialize history schema").
			WithContext("path", path).
			Build()
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL UNIQUE,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		dir TEXT NOT NULL,
		tool TEXT NOT NULL,
		config_file TEXT NOT NULL,
		git_commit TEXT NOT NULL DEFAULT '',
		git_branch TEXT NOT NULL DEFAULT '',
		git_dirty INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores a build record.
func (s *Store) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty := 0
	if r.Dirty {
		dirty = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (build_id, started_at, duration_ms, dir, tool, config_file,
			git_commit, git_branch, git_dirty, outcome, exit_code, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BuildID, r.StartedAt.UnixMilli(), r.Duration.Milliseconds(), r.Dir, r.Tool, r.ConfigFile,
		r.Commit, r.Branch, dirty, r.Outcome, r.ExitCode, r.Error,
	)
	if err != nil {
		return foundation.StorageError("insert build record").
			WithCause(err).
			Retryable().
			WithContext("build_id", r.BuildID).
			Build()
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT build_id, started_at, duration_ms, dir, tool, config_file,
			git_commit, git_branch, git_dirty, outcome, exit_code, error
		 FROM builds ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, foundation.WrapError(err, foundation.CategoryStorage, "query build records").Build()
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var (
			r          Record
			startedMS  int64
			durationMS int64
			dirty      int
		)
		if err := rows.Scan(&r.BuildID, &startedMS, &durationMS, &r.Dir, &r.Tool, &r.ConfigFile,
			&r.Commit, &r.Branch, &dirty, &r.Outcome, &r.ExitCode, &r.Error); err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMS)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.Dirty = dirty != 0
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate build records: %w", err)
	}
	return records, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
