package supervisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joshjon/kit/log"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/devloopai/agentcore/internal/store"
)

func newTestConfig(t *testing.T) Config {
	dir := t.TempDir()
	return Config{
		DBPath:            ":memory:",
		ReposBaseDir:      filepath.Join(dir, "repos"),
		WorkerCount:       1,
		HTTPPort:          17400, // avoids the default 7400 in case a real instance is running
		ReviewerEnabled:   false,
		StateSaveInterval: time.Hour,
		RetentionInterval: time.Hour,
		CheckpointDays:    365,
		StateFilePath:     filepath.Join(dir, "state.json"),
	}
}

func TestNew_WiresEveryComponent(t *testing.T) {
	s, err := New(context.Background(), newTestConfig(t), log.NewLogger())
	require.NoError(t, err)
	require.NotNil(t, s.store)
	require.NotNil(t, s.queue)
	require.NotNil(t, s.repos)
	require.NotNil(t, s.models)
	require.NotNil(t, s.pool)
	require.Nil(t, s.reviewer, "reviewer disabled in test config")
	require.NotNil(t, s.echo)
	require.Nil(t, s.taskFiles, "no TaskFilePath configured")
	require.NotNil(t, s.validator, "validator pipeline always constructed")
	require.NotNil(t, s.validatorRun, "validator sandbox runner always constructed, even without Docker reachable")
}

func TestNew_WiresTaskFileLoaderWhenConfigured(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.TaskFilePath = filepath.Join(t.TempDir(), "tasks.json")

	s, err := New(context.Background(), cfg, log.NewLogger())
	require.NoError(t, err)
	require.NotNil(t, s.taskFiles)
}

func TestNew_EveryResponseCarriesARequestID(t *testing.T) {
	s, err := New(context.Background(), newTestConfig(t), log.NewLogger())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s, err := New(context.Background(), newTestConfig(t), log.NewLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestRunCheckpoint_WritesReportFile(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ReportsDir = filepath.Join(t.TempDir(), "reports")

	s, err := New(context.Background(), cfg, log.NewLogger())
	require.NoError(t, err)

	since := time.Now().Add(-24 * time.Hour)
	done := make(chan struct{})
	go func() {
		s.runCheckpoint(context.Background(), log.NewLogger(), since)
		close(done)
	}()

	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(cfg.ReportsDir)
		return err == nil && len(entries) == 1
	}, time.Second, 5*time.Millisecond, "report file written while paused, before resume")

	s.pool.Resume()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runCheckpoint did not return after Resume")
	}

	entries, err := os.ReadDir(cfg.ReportsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "one report file written per checkpoint")
	require.Regexp(t, `^weekly_summary_\d{8}_\d{8}\.md$`, entries[0].Name())

	contents, err := os.ReadFile(filepath.Join(cfg.ReportsDir, entries[0].Name()))
	require.NoError(t, err)
	require.NotEmpty(t, contents)

	require.NotNil(t, s.lastCheckpoint, "checkpoint timestamp recorded even though report writing is best-effort")
}

func TestSaveAndLoadSnapshot_RoundTrips(t *testing.T) {
	s, err := New(context.Background(), newTestConfig(t), log.NewLogger())
	require.NoError(t, err)

	s.uptimeStart = time.Now().Add(-time.Hour).Truncate(time.Second)
	ctx := context.Background()
	require.NoError(t, s.saveSnapshot(ctx))

	snap, err := s.store.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, s.uptimeStart, snap.UptimeStart)
}

func TestSaveSnapshot_MirrorsToStateFile(t *testing.T) {
	cfg := newTestConfig(t)
	s, err := New(context.Background(), cfg, log.NewLogger())
	require.NoError(t, err)

	s.uptimeStart = time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	require.NoError(t, s.saveSnapshot(context.Background()))

	require.FileExists(t, cfg.StateFilePath)
	contents, err := os.ReadFile(cfg.StateFilePath)
	require.NoError(t, err)
	require.Contains(t, string(contents), "uptime_start")
}

func TestLoadSnapshot_FallsBackToStateFileWhenDBEmpty(t *testing.T) {
	cfg := newTestConfig(t)

	writer, err := New(context.Background(), cfg, log.NewLogger())
	require.NoError(t, err)
	writer.uptimeStart = time.Now().Add(-3 * time.Hour).Truncate(time.Second)
	require.NoError(t, writer.saveSnapshotFile(store.Snapshot{
		UptimeStart: writer.uptimeStart,
		Timestamp:   time.Now(),
	}))

	// A fresh Supervisor with an empty in-memory database but the same
	// state.json path should recover uptime_start from the file.
	reader, err := New(context.Background(), cfg, log.NewLogger())
	require.NoError(t, err)
	require.NoError(t, reader.loadSnapshot(context.Background()))
	require.Equal(t, writer.uptimeStart, reader.uptimeStart)
}
