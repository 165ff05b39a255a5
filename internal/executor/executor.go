// Package executor implements the Task Executor: a pool of Primary
// Workers, each cooperatively looping dequeue -> generate -> validate ->
// commit -> record outcome -> retry-or-fail, honoring pause/resume and
// graceful shutdown.
package executor

import (
	"context"
	"time"

	"github.com/devloopai/agentcore/internal/model"
	"github.com/devloopai/agentcore/internal/repository"
	"github.com/devloopai/agentcore/internal/store"
	"github.com/devloopai/agentcore/internal/task"
	"github.com/devloopai/agentcore/internal/validator"
)

// Status is a Primary Worker's current lifecycle state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWaiting Status = "waiting"
	StatusWorking Status = "working"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

// Queue is the subset of *queue.Queue the Executor depends on.
type Queue interface {
	Get(ctx context.Context) (*task.Task, error)
	Retry(ctx context.Context, t *task.Task) (bool, error)
}

// Store is the subset of *store.Store the Executor depends on.
type Store interface {
	MarkStarted(ctx context.Context, taskID task.ID, workerID string, ts time.Time) error
	MarkCompleted(ctx context.Context, taskID task.ID, workerID, result string, ts time.Time) error
	MarkFailed(ctx context.Context, taskID task.ID, workerID, errMsg string, retryCount int, ts time.Time) error
	AppendCommit(ctx context.Context, c store.CommitRecord) error
}

// Model is the subset of *model.Registry the Executor depends on.
type Model interface {
	Generate(ctx context.Context, prompt, taskID string) (string, model.Stats, error)
}

// Repository is the subset of *repository.Registry the Executor depends
// on. It never raises — Git-level failures are structured results, see
// repository.CommitResult.
type Repository interface {
	MaterializeFiles(alias string, files map[string]string) ([]string, error)
	CommitAndPush(ctx context.Context, alias, message string) repository.CommitResult
}

// Validator is the subset of *validator.Pipeline the Executor depends on.
type Validator interface {
	Validate(ctx context.Context, blob string) validator.Result
}

// DefaultRepo is the alias writes go to when a task carries no
// target_repo.
const DefaultRepo = "default"
