package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshjon/kit/log"

	"github.com/devloopai/agentcore/internal/store"
	"github.com/devloopai/agentcore/internal/task"
)

// State is a point-in-time snapshot of one Primary Worker, safe to copy and
// hand to the Control API or persisted into a Snapshot.
type State struct {
	ID             string     `json:"id"`
	Status         Status     `json:"status"`
	CurrentTask    string     `json:"current_task,omitempty"`
	CompletedCount int64      `json:"completed_count"`
	FailedCount    int64      `json:"failed_count"`
	StartedAt      time.Time  `json:"started_at"`
	StoppedAt      *time.Time `json:"stopped_at,omitempty"`
}

// primaryWorker runs the generate -> validate -> commit loop for tasks it
// pulls off the shared Queue. Every field read across goroutine boundaries
// (status, counters, current task) is atomic so Pool.Status can sample it
// without synchronizing with the worker's own loop.
type primaryWorker struct {
	id     string
	pool   *Pool
	logger log.Logger

	cancel context.CancelFunc
	done   chan struct{}

	status      atomic.Value // Status
	currentTask atomic.Value // string
	completed   atomic.Int64
	failed      atomic.Int64
	startedAt   time.Time
	stoppedAt   atomic.Value // time.Time

	pausedCh chan struct{} // closed while resumed; replaced on pause
	pauseMu  sync.Mutex
	paused   bool
}

func newPrimaryWorker(id string, pool *Pool) *primaryWorker {
	w := &primaryWorker{
		id:        id,
		pool:      pool,
		logger:    pool.logger.With("worker_id", id),
		done:      make(chan struct{}),
		startedAt: time.Now(),
		pausedCh:  make(chan struct{}),
	}
	close(w.pausedCh) // start resumed
	w.status.Store(StatusIdle)
	w.currentTask.Store("")
	return w
}

func (w *primaryWorker) setStatus(s Status) { w.status.Store(s) }
func (w *primaryWorker) getStatus() Status  { return w.status.Load().(Status) }
func (w *primaryWorker) setTask(id string)  { w.currentTask.Store(id) }
func (w *primaryWorker) getTask() string    { return w.currentTask.Load().(string) }

func (w *primaryWorker) state() State {
	s := State{
		ID:             w.id,
		Status:         w.getStatus(),
		CurrentTask:    w.getTask(),
		CompletedCount: w.completed.Load(),
		FailedCount:    w.failed.Load(),
		StartedAt:      w.startedAt,
	}
	if t, ok := w.stoppedAt.Load().(time.Time); ok {
		s.StoppedAt = &t
	}
	return s
}

// pause flips the worker's cooperative pause flag; the loop observes it at
// the top of every iteration.
func (w *primaryWorker) pause() {
	w.pauseMu.Lock()
	defer w.pauseMu.Unlock()
	if w.paused {
		return
	}
	w.paused = true
	w.pausedCh = make(chan struct{})
}

// resume clears the pause flag and wakes any iteration blocked waiting for
// it.
func (w *primaryWorker) resume() {
	w.pauseMu.Lock()
	defer w.pauseMu.Unlock()
	if !w.paused {
		return
	}
	w.paused = false
	close(w.pausedCh)
}

func (w *primaryWorker) waitWhilePaused(ctx context.Context) {
	for {
		w.pauseMu.Lock()
		paused := w.paused
		wake := w.pausedCh
		w.pauseMu.Unlock()
		if !paused {
			return
		}
		w.setStatus(StatusPaused)
		select {
		case <-ctx.Done():
			return
		case <-wake:
		}
	}
}

// run is the worker loop. It exits when ctx is cancelled, always via the
// top-of-loop pause/dequeue checks so an in-flight task still finishes.
func (w *primaryWorker) run(ctx context.Context) {
	defer close(w.done)
	defer func() {
		now := time.Now()
		w.stoppedAt.Store(now)
		w.setStatus(StatusStopped)
	}()

	for {
		w.waitWhilePaused(ctx)
		if ctx.Err() != nil {
			return
		}

		w.setStatus(StatusWaiting)
		getCtx, cancel := context.WithTimeout(ctx, w.pool.dequeueTimeout)
		t, err := w.pool.queue.Get(getCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Dequeue timed out with nothing available; loop back to the
			// pause/shutdown checks.
			w.setStatus(StatusIdle)
			continue
		}

		// A Pause that lands while blocked in Get holds the claimed task
		// here until Resume instead of starting it; if the worker is
		// cancelled meanwhile, the task is not run.
		w.waitWhilePaused(ctx)
		if ctx.Err() != nil {
			return
		}

		w.process(ctx, t)
	}
}

// process runs one task through generate -> validate -> commit -> record,
// then retries or terminally fails it on any error.
func (w *primaryWorker) process(ctx context.Context, t *task.Task) {
	w.setStatus(StatusWorking)
	w.setTask(t.ID.String())
	defer w.setTask("")

	now := time.Now()
	if err := w.pool.store.MarkStarted(ctx, t.ID, w.id, now); err != nil {
		w.logger.Error("mark started failed", "task_id", t.ID.String(), "error", err.Error())
	}

	result, failErr := w.runPipeline(ctx, t)
	if failErr != nil {
		w.onFailure(ctx, t, failErr)
		return
	}

	w.completed.Add(1)
	if err := w.pool.store.MarkCompleted(ctx, t.ID, w.id, result, time.Now()); err != nil {
		w.logger.Error("mark completed failed", "task_id", t.ID.String(), "error", err.Error())
	}
}

// runPipeline executes generate, validate, and commit in sequence, returning
// a human-readable result summary on success or a descriptive error on the
// first stage that fails.
func (w *primaryWorker) runPipeline(ctx context.Context, t *task.Task) (string, error) {
	code, stats, err := w.pool.model.Generate(ctx, t.Description, t.ID.String())
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	validation := w.pool.validator.Validate(ctx, code)
	if !validation.Valid {
		return "", fmt.Errorf("syntax check failed for %d file(s)", len(validation.Files.Order))
	}
	if w.pool.requireTestsPass && validation.TestRun.Err == nil && !validation.TestRun.OK {
		return "", fmt.Errorf("test run failed (exit %d): %s", validation.TestRun.ExitCode, validation.TestRun.Stderr)
	}

	alias := t.RepoAlias(w.pool.defaultRepo)

	unlock := w.pool.lockAlias(alias)
	defer unlock()

	if _, err := w.pool.repo.MaterializeFiles(alias, validation.Files.Contents); err != nil {
		return "", fmt.Errorf("materialize files: %w", err)
	}

	message := fmt.Sprintf("agent: %s", t.Description)
	commitResult := w.pool.repo.CommitAndPush(ctx, alias, message)
	if !commitResult.OK {
		// A commit failure is a CommitProblem: logged as a warning, never
		// retried, the task still completes — the files were generated and
		// validated successfully, only the persistence step failed.
		w.logger.Warn("commit failed, task still completes", "task_id", t.ID.String(), "alias", alias, "error", commitResult.Error)
		return fmt.Sprintf("files=%d model=%s commit=omitted (%s)", len(validation.Files.Order), stats.Name, commitResult.Error), nil
	}

	if err := w.pool.store.AppendCommit(ctx, store.CommitRecord{
		TaskID:       t.ID.String(),
		CommitID:     commitResult.Commit,
		Message:      message,
		FilesChanged: validation.Files.Order,
	}); err != nil {
		w.logger.Error("append commit record failed", "task_id", t.ID.String(), "error", err.Error())
	}

	summary := fmt.Sprintf("files=%d model=%s commit=%s", len(validation.Files.Order), stats.Name, commitResult.Commit)
	if commitResult.Noop {
		summary += " (no changes)"
	}
	if commitResult.Remoteless {
		summary += " (no remote configured)"
	}
	return summary, nil
}

func (w *primaryWorker) onFailure(ctx context.Context, t *task.Task, cause error) {
	w.failed.Add(1)
	t.Error = cause.Error()

	if err := w.pool.store.MarkFailed(ctx, t.ID, w.id, cause.Error(), t.RetryCount, time.Now()); err != nil {
		w.logger.Error("mark failed failed", "task_id", t.ID.String(), "error", err.Error())
	}

	retried, err := w.pool.queue.Retry(ctx, t)
	if err != nil {
		w.logger.Error("retry failed", "task_id", t.ID.String(), "error", err.Error())
		return
	}
	if retried {
		w.logger.Warn("task requeued for retry", "task_id", t.ID.String(), "retry_count", t.RetryCount, "cause", cause.Error())
	} else {
		w.logger.Error("task exhausted retries, terminal failure", "task_id", t.ID.String(), "cause", cause.Error())
	}
}
