package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AppendEvent writes one append-only Event row.
func (s *Store) AppendEvent(ctx context.Context, e Event) error {
	return insertEvent(ctx, s.db, e)
}

func insertEvent(ctx context.Context, ex execer, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO events (timestamp, task_id, worker_id, component, level, message, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Timestamp, toNullString(e.TaskID), toNullString(e.WorkerID), e.Component,
		string(e.Level), e.Message, toNullString(e.Details))
	if err != nil {
		return fmt.Errorf("store: append event: %w", err)
	}
	return nil
}

// AppendCommit writes one CommitRecord, one per successful commit_and_push.
func (s *Store) AppendCommit(ctx context.Context, c CommitRecord) error {
	files, err := marshalStrings(c.FilesChanged)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commits (task_id, commit_id, message, files_changed, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.TaskID, c.CommitID, c.Message, files, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: append commit: %w", err)
	}
	return nil
}

// RecentCommits returns the most recent commits across all tasks, newest
// first, bounded by limit.
func (s *Store) RecentCommits(ctx context.Context, limit int) ([]CommitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, commit_id, message, files_changed, created_at
		FROM commits ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent commits: %w", err)
	}
	defer rows.Close()

	var out []CommitRecord
	for rows.Next() {
		var c CommitRecord
		var files string
		if err := rows.Scan(&c.ID, &c.TaskID, &c.CommitID, &c.Message, &files, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: recent commits: %w", err)
		}
		c.FilesChanged, err = unmarshalStrings(files)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CommitsForTask returns every commit recorded for a single task, oldest
// first — the Tireless Reviewer uses this to locate the files a completed
// task actually wrote.
func (s *Store) CommitsForTask(ctx context.Context, taskID string) ([]CommitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, commit_id, message, files_changed, created_at
		FROM commits WHERE task_id = ? ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("store: commits for task: %w", err)
	}
	defer rows.Close()

	var out []CommitRecord
	for rows.Next() {
		var c CommitRecord
		var files string
		if err := rows.Scan(&c.ID, &c.TaskID, &c.CommitID, &c.Message, &files, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: commits for task: %w", err)
		}
		c.FilesChanged, err = unmarshalStrings(files)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendModelStat writes one ModelCallStat, one per generation call
// attempt whether it succeeded or not.
func (s *Store) AppendModelStat(ctx context.Context, m ModelCallStat) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_call_stats (task_id, kind, name, prompt_tokens, completion_tokens,
			elapsed_ms, ok, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.TaskID, m.Kind, m.Name, m.PromptTokens, m.CompletionTokens,
		m.Elapsed.Milliseconds(), m.OK, toNullString(m.Error), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: append model stat: %w", err)
	}
	return nil
}

// AppendReviewFinding writes one non-empty review category for a task.
func (s *Store) AppendReviewFinding(ctx context.Context, f ReviewFinding) error {
	issues, err := marshalStrings(f.Issues)
	if err != nil {
		return err
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_findings (task_id, review_kind, category, issues, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, f.TaskID, f.Kind, f.Category, issues, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: append review finding: %w", err)
	}
	return nil
}

// FindingsForTask returns every ReviewFinding recorded for a task, oldest
// first.
func (s *Store) FindingsForTask(ctx context.Context, taskID string) ([]ReviewFinding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, review_kind, category, issues, created_at
		FROM review_findings WHERE task_id = ? ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("store: findings for task: %w", err)
	}
	defer rows.Close()

	var out []ReviewFinding
	for rows.Next() {
		var f ReviewFinding
		var issues string
		if err := rows.Scan(&f.ID, &f.TaskID, &f.Kind, &f.Category, &issues, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: findings for task: %w", err)
		}
		f.Issues, err = unmarshalStrings(issues)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RecentEvents returns the most recent events, newest first, bounded by
// limit.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, task_id, worker_id, component, level, message, details
		FROM events ORDER BY timestamp DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var level string
		var taskID, workerID, details sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &taskID, &workerID, &e.Component, &level, &e.Message, &details); err != nil {
			return nil, fmt.Errorf("store: recent events: %w", err)
		}
		e.TaskID = nullString(taskID)
		e.WorkerID = nullString(workerID)
		e.Details = nullString(details)
		e.Level = Level(level)
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneEvents deletes all but the most recent maxEntries events by
// timestamp.
func (s *Store) PruneEvents(ctx context.Context, maxEntries int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM events WHERE id NOT IN (
			SELECT id FROM events ORDER BY timestamp DESC LIMIT ?
		)
	`, maxEntries)
	if err != nil {
		return 0, fmt.Errorf("store: prune events: %w", err)
	}
	return res.RowsAffected()
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting insertEvent run
// standalone or as part of a larger transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
