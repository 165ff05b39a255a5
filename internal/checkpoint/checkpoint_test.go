package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devloopai/agentcore/internal/store"
	"github.com/devloopai/agentcore/internal/task"
)

type fakeStore struct {
	stats         store.TaskStats
	statsErr      error
	completed     []*task.Task
	completedErr  error
	commits       []store.CommitRecord
	commitsErr    error
}

func (f *fakeStore) TaskStats(context.Context) (store.TaskStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeStore) TasksCompletedBetween(context.Context, time.Time, time.Time, int) ([]*task.Task, error) {
	return f.completed, f.completedErr
}

func (f *fakeStore) RecentCommits(context.Context, int) ([]store.CommitRecord, error) {
	return f.commits, f.commitsErr
}

func TestRender_IncludesCountsInSummary(t *testing.T) {
	window := Window{Start: time.Now().Add(-time.Hour), End: time.Now()}
	src := Sources{Store: &fakeStore{
		stats:     store.TaskStats{Pending: 1, Running: 2, Completed: 3, Failed: 4},
		completed: []*task.Task{{ID: task.NewID(), Description: "did a thing"}},
		commits:   []store.CommitRecord{{CommitID: "abc123", CreatedAt: time.Now()}},
	}}

	report, err := Render(context.Background(), window, src)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TasksCompleted)
	assert.Equal(t, 1, report.CommitsPushed)
	assert.Contains(t, report.Summary, "pending=1 running=2 completed=3 failed=4")
	assert.Contains(t, report.Summary, "did a thing")
}

func TestRender_ExcludesCommitsOutsideWindow(t *testing.T) {
	window := Window{Start: time.Now().Add(-time.Hour), End: time.Now()}
	src := Sources{Store: &fakeStore{
		commits: []store.CommitRecord{{CommitID: "old", CreatedAt: time.Now().Add(-48 * time.Hour)}},
	}}

	report, err := Render(context.Background(), window, src)
	require.NoError(t, err)
	assert.Equal(t, 0, report.CommitsPushed)
}

func TestRender_FailsOnTaskStatsError(t *testing.T) {
	src := Sources{Store: &fakeStore{statsErr: errors.New("db down")}}
	_, err := Render(context.Background(), Window{}, src)
	assert.Error(t, err)
}

func TestRender_GroupsCompletedTasksByRepo(t *testing.T) {
	window := Window{Start: time.Now().Add(-time.Hour), End: time.Now()}
	src := Sources{Store: &fakeStore{
		completed: []*task.Task{
			{ID: task.NewID(), Description: "a", TargetRepo: "infra"},
			{ID: task.NewID(), Description: "b", TargetRepo: "infra"},
			{ID: task.NewID(), Description: "c", TargetRepo: "web"},
			{ID: task.NewID(), Description: "d"},
		},
	}}

	report, err := Render(context.Background(), window, src)
	require.NoError(t, err)
	require.Len(t, report.ByRepo, 3)
	assert.Equal(t, RepoBreakdown{Alias: "infra", Completed: 2}, report.ByRepo[0])
	assert.Equal(t, RepoBreakdown{Alias: "web", Completed: 1}, report.ByRepo[1])
	assert.Equal(t, RepoBreakdown{Alias: "default", Completed: 1}, report.ByRepo[2])
	assert.Contains(t, report.Summary, "by repository:")
	assert.Contains(t, report.Summary, "infra: 2 completed")
}

func TestRender_DegradesGracefullyOnPartialFailure(t *testing.T) {
	src := Sources{Store: &fakeStore{
		completedErr: errors.New("query failed"),
		commitsErr:   errors.New("query failed"),
	}}

	report, err := Render(context.Background(), Window{}, src)
	require.NoError(t, err)
	assert.Contains(t, report.Summary, "tasks completed in window: unavailable")
	assert.Contains(t, report.Summary, "commits: unavailable")
}
