// Package store implements the Event Store: the single durable SQLite-backed
// record of tasks, execution events, commits, model-call stats, review
// findings, and the system snapshot. Every other component reads and writes
// through this package; the in-memory queue and worker-state maps are caches
// derived from it, never the other way around.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	description  TEXT NOT NULL,
	priority     INTEGER NOT NULL,
	status       TEXT NOT NULL,
	created_at   DATETIME NOT NULL,
	started_at   DATETIME,
	completed_at DATETIME,
	worker_id    TEXT,
	retry_count  INTEGER NOT NULL DEFAULT 0,
	max_retries  INTEGER NOT NULL DEFAULT 0,
	result       TEXT,
	error        TEXT,
	target_repo  TEXT
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp  DATETIME NOT NULL,
	task_id    TEXT,
	worker_id  TEXT,
	component  TEXT NOT NULL,
	level      TEXT NOT NULL,
	message    TEXT NOT NULL,
	details    TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_task_id ON events(task_id);

CREATE TABLE IF NOT EXISTS commits (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id       TEXT NOT NULL,
	commit_id     TEXT NOT NULL,
	message       TEXT NOT NULL,
	files_changed TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_commits_task_id ON commits(task_id);

CREATE TABLE IF NOT EXISTS model_call_stats (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id          TEXT NOT NULL,
	kind             TEXT NOT NULL,
	name             TEXT NOT NULL,
	prompt_tokens    INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	elapsed_ms       INTEGER NOT NULL DEFAULT 0,
	ok               BOOLEAN NOT NULL DEFAULT 0,
	error            TEXT,
	created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_model_call_stats_task_id ON model_call_stats(task_id);

CREATE TABLE IF NOT EXISTS review_findings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id     TEXT NOT NULL,
	review_kind TEXT NOT NULL,
	category    TEXT NOT NULL,
	issues      TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_findings_task_id ON review_findings(task_id);

CREATE TABLE IF NOT EXISTS system_snapshot (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	uptime_start    DATETIME NOT NULL,
	last_checkpoint DATETIME,
	worker_states   TEXT NOT NULL,
	queue_stats     TEXT NOT NULL,
	timestamp       DATETIME NOT NULL
);
`

// Store is the durable Event Store. It wraps a single *sql.DB; every
// operation is a short transaction or single statement — no row lock is
// ever held across a suspension point.
type Store struct {
	db *sql.DB
}

// Open creates (if absent) and opens the SQLite database at path, running
// idempotent schema creation. Use ":memory:" for an in-process store, the
// pattern the teacher's tests rely on.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set journal_mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
