package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devloopai/agentcore/internal/task"
)

// RecordTaskCreated inserts or upserts a Task row. Idempotent on task_id:
// calling it twice for the same task is a no-op on the second call other
// than refreshing mutable fields.
func (s *Store) RecordTaskCreated(ctx context.Context, t *task.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, description, priority, status, created_at, started_at,
			completed_at, worker_id, retry_count, max_retries, result, error, target_repo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			priority    = excluded.priority,
			status      = excluded.status,
			started_at  = excluded.started_at,
			completed_at = excluded.completed_at,
			worker_id   = excluded.worker_id,
			retry_count = excluded.retry_count,
			max_retries = excluded.max_retries,
			result      = excluded.result,
			error       = excluded.error,
			target_repo = excluded.target_repo
	`,
		t.ID.String(), t.Description, t.Priority, string(t.Status), t.CreatedAt,
		toNullTime(t.StartedAt), toNullTime(t.CompletedAt), toNullString(t.WorkerID),
		t.RetryCount, t.MaxRetries, toNullString(t.Result), toNullString(t.Error),
		toNullString(t.TargetRepo),
	)
	if err != nil {
		return fmt.Errorf("store: record task created: %w", tagErr(err))
	}
	return nil
}

// MarkStarted transitions a task to running and writes a companion Event.
func (s *Store) MarkStarted(ctx context.Context, taskID task.ID, workerID string, ts time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, worker_id = ?, started_at = ?
			WHERE id = ?
		`, string(task.StatusRunning), workerID, ts, taskID.String())
		if err != nil {
			return tagErr(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errtagNotFound(taskID.String())
		}
		return insertEvent(ctx, tx, Event{
			Timestamp: ts,
			TaskID:    taskID.String(),
			WorkerID:  workerID,
			Component: "executor",
			Level:     LevelInfo,
			Message:   "task started",
		})
	})
}

// MarkCompleted transitions a task to completed and writes a companion
// Event carrying the structured result summary.
func (s *Store) MarkCompleted(ctx context.Context, taskID task.ID, workerID, result string, ts time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, worker_id = ?, completed_at = ?, result = ?
			WHERE id = ?
		`, string(task.StatusCompleted), workerID, ts, result, taskID.String())
		if err != nil {
			return tagErr(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errtagNotFound(taskID.String())
		}
		return insertEvent(ctx, tx, Event{
			Timestamp: ts,
			TaskID:    taskID.String(),
			WorkerID:  workerID,
			Component: "executor",
			Level:     LevelInfo,
			Message:   "task completed",
			Details:   result,
		})
	})
}

// MarkFailed transitions a task to failed and writes a companion Event. The
// caller (the Executor, via the Queue's retry()) is responsible for
// deciding whether the task re-enters the queue as pending; this method
// only ever records the terminal failed observation plus the retry_count
// the caller has already computed.
func (s *Store) MarkFailed(ctx context.Context, taskID task.ID, workerID, errMsg string, retryCount int, ts time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, worker_id = ?, error = ?, retry_count = ?
			WHERE id = ?
		`, string(task.StatusFailed), workerID, errMsg, retryCount, taskID.String())
		if err != nil {
			return tagErr(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errtagNotFound(taskID.String())
		}
		return insertEvent(ctx, tx, Event{
			Timestamp: ts,
			TaskID:    taskID.String(),
			WorkerID:  workerID,
			Component: "executor",
			Level:     LevelWarning,
			Message:   "task failed",
			Details:   errMsg,
		})
	})
}

// RequeueAsPending flips a task back to pending with an incremented
// retry_count, the row-level half of Queue.retry — the caller reinserts
// the in-memory heap entry.
func (s *Store) RequeueAsPending(ctx context.Context, taskID task.ID, priority, retryCount int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, priority = ?, retry_count = ?, worker_id = NULL
		WHERE id = ?
	`, string(task.StatusPending), priority, retryCount, taskID.String())
	if err != nil {
		return fmt.Errorf("store: requeue as pending: %w", tagErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errtagNotFound(taskID.String())
	}
	return nil
}

// LoadOpenTasks returns tasks with status in {pending, running} ordered by
// (priority desc, created_at asc), the order the Queue reloads them in on
// initialize().
func (s *Store) LoadOpenTasks(ctx context.Context) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, priority, status, created_at, started_at, completed_at,
			worker_id, retry_count, max_retries, result, error, target_repo
		FROM tasks
		WHERE status IN (?, ?)
		ORDER BY priority DESC, created_at ASC
	`, string(task.StatusPending), string(task.StatusRunning))
	if err != nil {
		return nil, fmt.Errorf("store: load open tasks: %w", err)
	}
	defer rows.Close()

	var out []*task.Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: load open tasks: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTask looks up a single task by ID.
func (s *Store) GetTask(ctx context.Context, taskID task.ID) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, description, priority, status, created_at, started_at, completed_at,
			worker_id, retry_count, max_retries, result, error, target_repo
		FROM tasks WHERE id = ?
	`, taskID.String())
	t, err := scanTaskRow(row)
	if err != nil {
		return nil, fmt.Errorf("store: get task: %w", tagErr(err))
	}
	return t, nil
}

// TasksCompletedBetween returns tasks with status=completed whose
// completed_at falls in [since, until), the window the Tireless Reviewer's
// two cadences select from.
func (s *Store) TasksCompletedBetween(ctx context.Context, since, until time.Time, limit int) ([]*task.Task, error) {
	query := `
		SELECT id, description, priority, status, created_at, started_at, completed_at,
			worker_id, retry_count, max_retries, result, error, target_repo
		FROM tasks
		WHERE status = ? AND completed_at >= ? AND completed_at < ?
		ORDER BY completed_at ASC
	`
	args := []any{string(task.StatusCompleted), since, until}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: tasks completed between: %w", err)
	}
	defer rows.Close()

	var out []*task.Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: tasks completed between: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TaskStats returns the aggregate per-status count.
func (s *Store) TaskStats(ctx context.Context) (TaskStats, error) {
	var stats TaskStats
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("store: task stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("store: task stats: %w", err)
		}
		switch task.Status(status) {
		case task.StatusPending:
			stats.Pending = count
		case task.StatusRunning:
			stats.Running = count
		case task.StatusCompleted:
			stats.Completed = count
		case task.StatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// PruneCompleted deletes completed/failed tasks whose completed_at is older
// than olderThanDays. MarkFailed leaves completed_at unset, so a failed
// task never matches and only completed tasks are removed.
func (s *Store) PruneCompleted(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks WHERE status IN (?, ?) AND completed_at < ?
	`, string(task.StatusCompleted), string(task.StatusFailed), cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: prune completed: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTaskRow(r rowScanner) (*task.Task, error) {
	var row taskRow
	var startedAt, completedAt sql.NullTime
	var workerID, result, errMsg, targetRepo sql.NullString

	if err := r.Scan(
		&row.ID, &row.Description, &row.Priority, &row.Status, &row.CreatedAt,
		&startedAt, &completedAt, &workerID, &row.RetryCount, &row.MaxRetries,
		&result, &errMsg, &targetRepo,
	); err != nil {
		return nil, err
	}

	row.StartedAt = nullTime(startedAt)
	row.CompletedAt = nullTime(completedAt)
	row.WorkerID = nullString(workerID)
	row.Result = nullString(result)
	row.Error = nullString(errMsg)
	row.TargetRepo = nullString(targetRepo)

	return row.toTask()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func errtagNotFound(taskID string) error {
	return fmt.Errorf("task %s: %w", taskID, tagErr(sql.ErrNoRows))
}
