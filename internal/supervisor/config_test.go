package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joshjon/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devloopai/agentcore/internal/model"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, model.KindHTTPLocal, cfg.ModelType)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.TaskTimeout)
	assert.Equal(t, "0.0.0.0", cfg.HTTPHost)
	assert.Equal(t, 7400, cfg.HTTPPort)
	assert.Equal(t, "main", cfg.Branch)
	assert.Equal(t, 7, cfg.CheckpointDays)
	assert.Equal(t, time.Hour, cfg.StateSaveInterval)
	assert.Equal(t, 1000, cfg.MaxLogEntries)
	assert.Equal(t, 5*time.Minute, cfg.ReviewInterval)
	assert.Equal(t, 30*time.Minute, cfg.DeepReviewInterval)
	assert.Equal(t, 10, cfg.MaxConnectedRepos)
	assert.Equal(t, "golang:1.25", cfg.ValidatorImage)
	assert.Equal(t, "go vet ./... && go test ./...", cfg.TestCommand)
	assert.Equal(t, "reports", cfg.ReportsDir)
	assert.Equal(t, "state.json", cfg.StateFilePath)
}

func TestConfig_WithDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{WorkerCount: 9, HTTPPort: 9000}.withDefaults()
	assert.Equal(t, 9, cfg.WorkerCount)
	assert.Equal(t, 9000, cfg.HTTPPort)
}

func TestConfigFromEnv_ReadsRecognizedKeys(t *testing.T) {
	t.Setenv("WORKER_COUNT", "7")
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("AUTO_PUSH", "true")
	t.Setenv("REVIEWER_ENABLED", "false")

	cfg := ConfigFromEnv(log.NewLogger())
	assert.Equal(t, 7, cfg.WorkerCount)
	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.True(t, cfg.AutoPush)
	assert.False(t, cfg.ReviewerEnabled)
}

func TestConfigFromEnv_InvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("WORKER_COUNT", "not-a-number")
	cfg := ConfigFromEnv(log.NewLogger())
	assert.Equal(t, 3, cfg.WorkerCount)
}

func TestConfigFromEnv_ReviewerEnabledDefaultsTrue(t *testing.T) {
	_ = os.Unsetenv("REVIEWER_ENABLED")
	cfg := ConfigFromEnv(log.NewLogger())
	assert.True(t, cfg.ReviewerEnabled)
}

func TestConfigFromEnv_RequireTestsPassDefaultsTrue(t *testing.T) {
	_ = os.Unsetenv("REQUIRE_TESTS_PASS")
	cfg := ConfigFromEnv(log.NewLogger())
	assert.True(t, cfg.RequireTestsPass)
}

func TestConfigFromEnv_RequireTestsPassCanBeDisabled(t *testing.T) {
	t.Setenv("REQUIRE_TESTS_PASS", "false")
	cfg := ConfigFromEnv(log.NewLogger())
	assert.False(t, cfg.RequireTestsPass)
}

func TestConfigFromEnv_AppliesLocalConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"worker_count": 2,
		"branch": "master",
		"auto_push": true,
		"task_timeout": "5m"
	}`), 0o644))

	t.Setenv("LOCAL_CONFIG_PATH", path)
	t.Setenv("WORKER_COUNT", "9")

	cfg := ConfigFromEnv(log.NewLogger())
	assert.Equal(t, 2, cfg.WorkerCount, "local override wins over environment")
	assert.Equal(t, "master", cfg.Branch)
	assert.True(t, cfg.AutoPush)
	assert.Equal(t, 5*time.Minute, cfg.TaskTimeout)
}

func TestConfigFromEnv_IgnoresUnreadableLocalConfig(t *testing.T) {
	t.Setenv("LOCAL_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
	cfg := ConfigFromEnv(log.NewLogger())
	assert.Equal(t, 3, cfg.WorkerCount, "falls back to default when override file is unreadable")
}
