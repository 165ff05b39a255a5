package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devloopai/agentcore/internal/task"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordTaskCreated_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tsk := task.NewTask("write a factorial function", 3, 2, "")
	require.NoError(t, s.RecordTaskCreated(ctx, tsk))
	require.NoError(t, s.RecordTaskCreated(ctx, tsk))

	got, err := s.GetTask(ctx, tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, tsk.Description, got.Description)
	assert.Equal(t, task.StatusPending, got.Status)
}

func TestMarkStarted_Completed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tsk := task.NewTask("desc", 0, 2, "")
	require.NoError(t, s.RecordTaskCreated(ctx, tsk))

	now := time.Now()
	require.NoError(t, s.MarkStarted(ctx, tsk.ID, "worker-1", now))

	got, err := s.GetTask(ctx, tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, got.Status)
	assert.Equal(t, "worker-1", got.WorkerID)
	require.NotNil(t, got.StartedAt)

	require.NoError(t, s.MarkCompleted(ctx, tsk.ID, "worker-1", `{"files":1}`, now.Add(time.Second)))

	got, err = s.GetTask(ctx, tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, `{"files":1}`, got.Result)

	events, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 2, "expected started + completed companion events")
}

func TestMarkFailed_ThenRequeue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tsk := task.NewTask("desc", 3, 2, "")
	require.NoError(t, s.RecordTaskCreated(ctx, tsk))
	require.NoError(t, s.MarkStarted(ctx, tsk.ID, "worker-1", time.Now()))
	require.NoError(t, s.MarkFailed(ctx, tsk.ID, "worker-1", "boom", 1, time.Now()))

	got, err := s.GetTask(ctx, tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Equal(t, 1, got.RetryCount)

	require.NoError(t, s.RequeueAsPending(ctx, tsk.ID, 2, 1))

	got, err = s.GetTask(ctx, tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, 2, got.Priority)
	assert.Empty(t, got.WorkerID)
}

func TestLoadOpenTasks_OrderedByPriorityThenCreated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	low := task.NewTask("low", 1, 0, "")
	high := task.NewTask("high", 5, 0, "")
	mid := task.NewTask("mid", 3, 0, "")

	require.NoError(t, s.RecordTaskCreated(ctx, low))
	require.NoError(t, s.RecordTaskCreated(ctx, high))
	require.NoError(t, s.RecordTaskCreated(ctx, mid))

	open, err := s.LoadOpenTasks(ctx)
	require.NoError(t, err)
	require.Len(t, open, 3)
	assert.Equal(t, high.ID.String(), open[0].ID.String())
	assert.Equal(t, mid.ID.String(), open[1].ID.String())
	assert.Equal(t, low.ID.String(), open[2].ID.String())
}

func TestLoadOpenTasks_ExcludesTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tsk := task.NewTask("desc", 0, 0, "")
	require.NoError(t, s.RecordTaskCreated(ctx, tsk))
	require.NoError(t, s.MarkStarted(ctx, tsk.ID, "w1", time.Now()))
	require.NoError(t, s.MarkCompleted(ctx, tsk.ID, "w1", "ok", time.Now()))

	open, err := s.LoadOpenTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestGetTask_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTask(context.Background(), task.NewID())
	assert.Error(t, err)
}

func TestAppendCommitAndRecentCommits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tsk := task.NewTask("desc", 0, 0, "")
	require.NoError(t, s.RecordTaskCreated(ctx, tsk))
	require.NoError(t, s.AppendCommit(ctx, CommitRecord{
		TaskID:       tsk.ID.String(),
		CommitID:     "a1b2c3",
		Message:      "agent: desc",
		FilesChanged: []string{"main.go"},
	}))

	commits, err := s.RecentCommits(ctx, 10)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "a1b2c3", commits[0].CommitID)
	assert.Equal(t, []string{"main.go"}, commits[0].FilesChanged)
}

func TestAppendModelStat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tsk := task.NewTask("desc", 0, 0, "")
	require.NoError(t, s.RecordTaskCreated(ctx, tsk))
	require.NoError(t, s.AppendModelStat(ctx, ModelCallStat{
		TaskID:           tsk.ID.String(),
		Kind:             "http-local",
		Name:             "local-model",
		PromptTokens:     10,
		CompletionTokens: 20,
		Elapsed:          250 * time.Millisecond,
		OK:               true,
	}))
}

func TestAppendReviewFindingAndFindingsForTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tsk := task.NewTask("desc", 0, 0, "")
	require.NoError(t, s.RecordTaskCreated(ctx, tsk))
	require.NoError(t, s.AppendReviewFinding(ctx, ReviewFinding{
		TaskID:   tsk.ID.String(),
		Kind:     "primary",
		Category: "syntax_issues",
		Issues:   []string{"bare except at main.go:12"},
	}))

	findings, err := s.FindingsForTask(ctx, tsk.ID.String())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "syntax_issues", findings[0].Category)
	assert.Equal(t, []string{"bare except at main.go:12"}, findings[0].Issues)
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)

	snap := Snapshot{
		UptimeStart: time.Now().Add(-time.Hour),
		WorkerStates: []WorkerState{
			{WorkerID: "w1", Status: "idle"},
		},
		QueueStats: QueueStats{Size: 3, Pending: 3},
		Timestamp:  time.Now(),
	}
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	loaded, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 3, loaded.QueueStats.Size)
	require.Len(t, loaded.WorkerStates, 1)
	assert.Equal(t, "w1", loaded.WorkerStates[0].WorkerID)

	require.NoError(t, s.SaveSnapshot(ctx, snap))
}

func TestTaskStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pending := task.NewTask("a", 0, 0, "")
	running := task.NewTask("b", 0, 0, "")
	require.NoError(t, s.RecordTaskCreated(ctx, pending))
	require.NoError(t, s.RecordTaskCreated(ctx, running))
	require.NoError(t, s.MarkStarted(ctx, running.ID, "w1", time.Now()))

	stats, err := s.TaskStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Running)
}

func TestPruneEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendEvent(ctx, Event{
			Component: "test",
			Level:     LevelInfo,
			Message:   "tick",
		}))
	}

	deleted, err := s.PruneEvents(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	events, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestPruneCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tsk := task.NewTask("desc", 0, 0, "")
	require.NoError(t, s.RecordTaskCreated(ctx, tsk))
	require.NoError(t, s.MarkStarted(ctx, tsk.ID, "w1", time.Now()))
	old := time.Now().AddDate(0, 0, -40)
	require.NoError(t, s.MarkCompleted(ctx, tsk.ID, "w1", "ok", old))

	deleted, err := s.PruneCompleted(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestTasksCompletedBetween(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tsk := task.NewTask("major refactor", 0, 0, "")
	require.NoError(t, s.RecordTaskCreated(ctx, tsk))
	require.NoError(t, s.MarkStarted(ctx, tsk.ID, "w1", time.Now()))
	completedAt := time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.MarkCompleted(ctx, tsk.ID, "w1", "ok", completedAt))

	found, err := s.TasksCompletedBetween(ctx, time.Now().Add(-24*time.Hour), time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, tsk.ID.String(), found[0].ID.String())
}
