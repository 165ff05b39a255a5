package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveSnapshot overwrites the single system_snapshot row (key=1). It is
// called on the snapshot timer and on graceful shutdown.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	workerStates, err := marshalJSON(snap.WorkerStates)
	if err != nil {
		return err
	}
	queueStats, err := marshalJSON(snap.QueueStats)
	if err != nil {
		return err
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO system_snapshot (id, uptime_start, last_checkpoint, worker_states, queue_stats, timestamp)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uptime_start    = excluded.uptime_start,
			last_checkpoint = excluded.last_checkpoint,
			worker_states   = excluded.worker_states,
			queue_stats     = excluded.queue_stats,
			timestamp       = excluded.timestamp
	`, snap.UptimeStart, toNullTime(snap.LastCheckpoint), workerStates, queueStats, snap.Timestamp)
	if err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the persisted snapshot, or (nil, nil) if none has
// ever been saved — the caller (Supervisor.loadSnapshot) falls back to the
// state.json mirror file in that case.
func (s *Store) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uptime_start, last_checkpoint, worker_states, queue_stats, timestamp
		FROM system_snapshot WHERE id = 1
	`)

	var snap Snapshot
	var lastCheckpoint sql.NullTime
	var workerStates, queueStats string

	if err := row.Scan(&snap.UptimeStart, &lastCheckpoint, &workerStates, &queueStats, &snap.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: load snapshot: %w", err)
	}

	snap.LastCheckpoint = nullTime(lastCheckpoint)
	if err := unmarshalJSON(workerStates, &snap.WorkerStates); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(queueStats, &snap.QueueStats); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetStats assembles the aggregate view rendered by GET /status.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	taskStats, err := s.TaskStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{TaskStats: taskStats}, nil
}
