package store

import (
	"time"

	"github.com/devloopai/agentcore/internal/task"
)

// Level is an Event's severity.
type Level string

const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Event is one append-only line in the execution log: a companion of the
// same fact a structured log line records to stderr.
type Event struct {
	ID        int64
	Timestamp time.Time
	TaskID    string
	WorkerID  string
	Component string
	Level     Level
	Message   string
	Details   string
}

// CommitRecord is written once per successful commit_and_push.
type CommitRecord struct {
	ID           int64
	TaskID       string
	CommitID     string
	Message      string
	FilesChanged []string
	CreatedAt    time.Time
}

// ModelCallStat is written once per generation call attempt, successful or
// not.
type ModelCallStat struct {
	ID               int64
	TaskID           string
	Kind             string
	Name             string
	PromptTokens     int
	CompletionTokens int
	Elapsed          time.Duration
	OK               bool
	Error            string
	CreatedAt        time.Time
}

// ReviewFinding is one non-empty review category written by the Tireless
// Reviewer for a single task.
type ReviewFinding struct {
	ID        int64
	TaskID    string
	Kind      string // "primary" or "deep"
	Category  string
	Issues    []string
	CreatedAt time.Time
}

// WorkerState is the snapshot of one Primary Worker persisted for crash
// recovery display.
type WorkerState struct {
	WorkerID       string     `json:"worker_id"`
	Status         string     `json:"status"`
	CurrentTaskID  string     `json:"current_task_id,omitempty"`
	CompletedCount int        `json:"completed_count"`
	FailedCount    int        `json:"failed_count"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
}

// QueueStats is the snapshot of the queue's size persisted alongside worker
// states.
type QueueStats struct {
	Size    int `json:"size"`
	Pending int `json:"pending"`
}

// Snapshot is the at-most-one-row system_snapshot record, the durable
// record the Supervisor reloads on crash recovery.
type Snapshot struct {
	UptimeStart    time.Time     `json:"uptime_start"`
	LastCheckpoint *time.Time    `json:"last_checkpoint,omitempty"`
	WorkerStates   []WorkerState `json:"worker_states"`
	QueueStats     QueueStats    `json:"queue_stats"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Stats is the aggregate view rendered by GET /status.
type Stats struct {
	TaskStats TaskStats
}

// TaskStats is the aggregate per-status task count.
type TaskStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// taskRow mirrors the tasks table's columns one-to-one; it is the
// intermediate shape scanned from *sql.Rows before conversion into
// task.Task.
type taskRow struct {
	ID          string
	Description string
	Priority    int
	Status      string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	WorkerID    string
	RetryCount  int
	MaxRetries  int
	Result      string
	Error       string
	TargetRepo  string
}

func (r taskRow) toTask() (*task.Task, error) {
	id, err := task.ParseID(r.ID)
	if err != nil {
		return nil, err
	}
	return &task.Task{
		ID:          id,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      task.Status(r.Status),
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		WorkerID:    r.WorkerID,
		RetryCount:  r.RetryCount,
		MaxRetries:  r.MaxRetries,
		Result:      r.Result,
		Error:       r.Error,
		TargetRepo:  r.TargetRepo,
	}, nil
}
