// Package task defines the Task domain type shared by the Store, Queue,
// Executor, and Reviewer: a unit of work described in free text and driven
// through generate -> validate -> commit by a Primary Worker.
package task

import "time"

// Status represents the lifecycle state of a Task.
//
// Transitions are monotonic: pending -> running -> {completed, failed};
// failed -> pending only if retry_count < max_retries.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Task is a unit of work dispatched to the code-generation backend.
type Task struct {
	ID          ID         `json:"id"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	WorkerID    string     `json:"worker_id,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	TargetRepo  string     `json:"target_repo,omitempty"`
}

// NewTask creates a new pending Task with a generated ID.
func NewTask(description string, priority, maxRetries int, targetRepo string) *Task {
	return &Task{
		ID:          NewID(),
		Description: description,
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
		MaxRetries:  maxRetries,
		TargetRepo:  targetRepo,
	}
}

// CanRetry reports whether the task may re-enter the queue after a failure.
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// RepoAlias returns the alias the task should write to, defaulting to the
// implicit default repository when the task carries no explicit target.
func (t *Task) RepoAlias(defaultAlias string) string {
	if t.TargetRepo == "" {
		return defaultAlias
	}
	return t.TargetRepo
}
