package taskfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joshjon/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devloopai/agentcore/internal/task"
)

type fakeQueue struct {
	tasks []*task.Task
}

func (f *fakeQueue) Put(_ context.Context, t *task.Task) (bool, error) {
	f.tasks = append(f.tasks, t)
	return true, nil
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	q := &fakeQueue{}
	l := NewLoader(filepath.Join(t.TempDir(), "missing.json"), q, Config{}, log.NewLogger())

	n, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLoad_JSONBareList(t *testing.T) {
	path := writeFile(t, `["fix the bug", "add logging"]`)
	q := &fakeQueue{}
	l := NewLoader(path, q, Config{}, log.NewLogger())

	n, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "fix the bug", q.tasks[0].Description)
	assert.Equal(t, 0, q.tasks[0].Priority)
}

func TestLoad_JSONObjectEntries(t *testing.T) {
	path := writeFile(t, `{"tasks": [{"description": "refactor auth", "priority": 5, "target_repo": "api"}]}`)
	q := &fakeQueue{}
	l := NewLoader(path, q, Config{DefaultMaxRetries: 3}, log.NewLogger())

	n, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	got := q.tasks[0]
	assert.Equal(t, "refactor auth", got.Description)
	assert.Equal(t, 5, got.Priority)
	assert.Equal(t, "api", got.TargetRepo)
	assert.Equal(t, 3, got.MaxRetries)
}

func TestLoad_YAMLList(t *testing.T) {
	path := writeFile(t, "- description: write tests\n  priority: 2\n- prompt: document the API\n")
	q := &fakeQueue{}
	l := NewLoader(path, q, Config{}, log.NewLogger())

	n, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	assert.Equal(t, "write tests", q.tasks[0].Description)
	assert.Equal(t, "document the API", q.tasks[1].Description)
}

func TestLoad_SkipsEntryWithNoDescription(t *testing.T) {
	path := writeFile(t, `[{"priority": 1}, {"description": "valid"}]`)
	q := &fakeQueue{}
	l := NewLoader(path, q, Config{}, log.NewLogger())

	n, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, "valid", q.tasks[0].Description)
}

func TestLoad_UnrecognizedFormatErrors(t *testing.T) {
	path := writeFile(t, "not json, not yaml list: : :")
	q := &fakeQueue{}
	l := NewLoader(path, q, Config{}, log.NewLogger())

	_, err := l.Load(context.Background())
	assert.Error(t, err)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeFile(t, `["first"]`)
	q := &fakeQueue{}
	l := NewLoader(path, q, Config{Debounce: 20 * time.Millisecond}, log.NewLogger())

	_, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, q.tasks, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`["first", "second"]`), 0o644))

	require.Eventually(t, func() bool {
		return len(q.tasks) == 3
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
