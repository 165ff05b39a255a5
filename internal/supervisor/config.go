package supervisor

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/joshjon/kit/log"

	"github.com/devloopai/agentcore/internal/model"
)

// Config is the full environment-driven configuration of one Supervisor
// process, covering model selection, worker pool sizing, the HTTP control
// surface, checkpoint cadence, the Tireless Reviewer, and repository
// connection limits.
type Config struct {
	ModelType     model.Kind
	ModelName     string
	ModelBaseURL  string
	ModelAPIKey   string
	ModelFilePath string

	WorkerCount int
	MaxRetries  int
	TaskTimeout time.Duration

	HTTPHost string
	HTTPPort int

	DBPath string

	Branch   string
	AutoPush bool

	CheckpointDays     int
	StateSaveInterval  time.Duration
	RetentionInterval  time.Duration
	RetentionDays      int

	LogLevel      string
	MaxLogEntries int

	ReviewerEnabled     bool
	ReviewerWorkers     int
	ReviewInterval      time.Duration
	DeepReviewInterval  time.Duration
	CreateFollowUpTasks bool
	MajorTaskGraceDays  int

	ReposBaseDir     string
	MaxConnectedRepos int
	AutoPullUpdates  bool
	AutoScanRepos    bool

	TaskFilePath string

	ValidatorImage     string
	TestCommand        string
	DependencyInstall  string
	RequireTestsPass   bool

	ReportsDir string

	StateFilePath string
}

// withDefaults fills every zero-valued field with the default the original
// operator-facing environment documented, so a Config built from a mostly
// empty environment still runs.
func (c Config) withDefaults() Config {
	if c.ModelType == "" {
		c.ModelType = model.KindHTTPLocal
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 3
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 30 * time.Minute
	}
	if c.HTTPHost == "" {
		c.HTTPHost = "0.0.0.0"
	}
	if c.HTTPPort <= 0 {
		c.HTTPPort = 7400
	}
	if c.DBPath == "" {
		c.DBPath = "agentcore.db"
	}
	if c.Branch == "" {
		c.Branch = "main"
	}
	if c.CheckpointDays <= 0 {
		c.CheckpointDays = 7
	}
	if c.StateSaveInterval <= 0 {
		c.StateSaveInterval = time.Hour
	}
	if c.RetentionInterval <= 0 {
		c.RetentionInterval = time.Hour
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxLogEntries <= 0 {
		c.MaxLogEntries = 1000
	}
	if c.ReviewerWorkers <= 0 {
		c.ReviewerWorkers = 1
	}
	if c.ReviewInterval <= 0 {
		c.ReviewInterval = 5 * time.Minute
	}
	if c.DeepReviewInterval <= 0 {
		c.DeepReviewInterval = 30 * time.Minute
	}
	if c.MajorTaskGraceDays <= 0 {
		c.MajorTaskGraceDays = 7
	}
	if c.ReposBaseDir == "" {
		c.ReposBaseDir = "repos"
	}
	if c.MaxConnectedRepos <= 0 {
		c.MaxConnectedRepos = 10
	}
	if c.ValidatorImage == "" {
		c.ValidatorImage = "golang:1.25"
	}
	if c.TestCommand == "" {
		c.TestCommand = "go vet ./... && go test ./..."
	}
	if c.ReportsDir == "" {
		c.ReportsDir = "reports"
	}
	if c.StateFilePath == "" {
		c.StateFilePath = "state.json"
	}
	return c
}

// ConfigFromEnv reads the full operator-facing environment, the same
// variables the CLI and deployment docs describe, applying defaults for
// anything unset or unparsable.
func ConfigFromEnv(logger log.Logger) Config {
	cfg := Config{
		ModelType:     model.Kind(getEnvOrDefault("MODEL_TYPE", "")),
		ModelName:     os.Getenv("MODEL_NAME"),
		ModelBaseURL:  os.Getenv("MODEL_BASE_URL"),
		ModelAPIKey:   os.Getenv("MODEL_API_KEY"),
		ModelFilePath: os.Getenv("MODEL_FILE_PATH"),

		WorkerCount: getEnvOrDefaultInt(logger, "WORKER_COUNT", 0),
		MaxRetries:  getEnvOrDefaultInt(logger, "MAX_RETRIES", 0),
		TaskTimeout: getEnvOrDefaultDuration(logger, "TASK_TIMEOUT", 0),

		HTTPHost: getEnvOrDefault("HTTP_HOST", ""),
		HTTPPort: getEnvOrDefaultInt(logger, "HTTP_PORT", 0),

		DBPath: getEnvOrDefault("DB_PATH", ""),

		Branch:   getEnvOrDefault("BRANCH", ""),
		AutoPush: envBool("AUTO_PUSH"),

		CheckpointDays:    getEnvOrDefaultInt(logger, "CHECKPOINT_DAYS", 0),
		StateSaveInterval: getEnvOrDefaultDuration(logger, "STATE_SAVE_INTERVAL", 0),

		LogLevel:      getEnvOrDefault("LOG_LEVEL", ""),
		MaxLogEntries: getEnvOrDefaultInt(logger, "MAX_LOG_ENTRIES", 0),

		ReviewerEnabled:     os.Getenv("REVIEWER_ENABLED") != "false",
		ReviewerWorkers:     getEnvOrDefaultInt(logger, "REVIEWER_WORKERS", 0),
		ReviewInterval:      getEnvOrDefaultDuration(logger, "REVIEW_INTERVAL", 0),
		DeepReviewInterval:  getEnvOrDefaultDuration(logger, "DEEP_REVIEW_INTERVAL", 0),
		CreateFollowUpTasks: envBool("CREATE_FOLLOWUP_TASKS"),
		MajorTaskGraceDays:  getEnvOrDefaultInt(logger, "MAJOR_TASK_GRACE_PERIOD_DAYS", 0),

		ReposBaseDir:      getEnvOrDefault("REPOS_BASE_DIR", ""),
		MaxConnectedRepos: getEnvOrDefaultInt(logger, "MAX_CONNECTED_REPOS", 0),
		AutoPullUpdates:   envBool("AUTO_PULL_UPDATES"),
		AutoScanRepos:     envBool("AUTO_SCAN_REPOS"),

		TaskFilePath: os.Getenv("TASK_FILE_PATH"),

		ValidatorImage:    getEnvOrDefault("VALIDATOR_IMAGE", ""),
		TestCommand:       getEnvOrDefault("TEST_COMMAND", ""),
		DependencyInstall: getEnvOrDefault("DEPENDENCY_INSTALL_COMMAND", ""),
		RequireTestsPass:  os.Getenv("REQUIRE_TESTS_PASS") != "false",

		ReportsDir: getEnvOrDefault("REPORTS_DIR", ""),

		StateFilePath: getEnvOrDefault("STATE_FILE_PATH", ""),
	}

	if path := os.Getenv("LOCAL_CONFIG_PATH"); path != "" {
		cfg = applyLocalConfigFile(cfg, path, logger)
	}

	return cfg.withDefaults()
}

// localConfigOverrides is the shape of the optional LOCAL_CONFIG_PATH file:
// a developer-local, typically gitignored JSON document layered on top of
// the environment-derived Config before components are constructed. Every
// field is a pointer so an absent key leaves the environment's value in
// place rather than zeroing it out.
type localConfigOverrides struct {
	ModelType     *string `json:"model_type"`
	ModelName     *string `json:"model_name"`
	ModelBaseURL  *string `json:"model_base_url"`
	ModelAPIKey   *string `json:"model_api_key"`
	ModelFilePath *string `json:"model_file_path"`

	WorkerCount *int    `json:"worker_count"`
	MaxRetries  *int    `json:"max_retries"`
	TaskTimeout *string `json:"task_timeout"`

	HTTPHost *string `json:"http_host"`
	HTTPPort *int    `json:"http_port"`

	Branch   *string `json:"branch"`
	AutoPush *bool   `json:"auto_push"`

	CheckpointDays    *int    `json:"checkpoint_days"`
	StateSaveInterval *string `json:"state_save_interval"`

	LogLevel *string `json:"log_level"`

	ValidatorImage    *string `json:"validator_image"`
	TestCommand       *string `json:"test_command"`
	DependencyInstall *string `json:"dependency_install"`
	RequireTestsPass  *bool   `json:"require_tests_pass"`
	ReportsDir        *string `json:"reports_dir"`
	StateFilePath     *string `json:"state_file_path"`
}

// applyLocalConfigFile reads path as JSON and overlays any present fields
// onto cfg. A missing or malformed file is logged and otherwise ignored —
// the override file is a developer convenience, never load-bearing.
func applyLocalConfigFile(cfg Config, path string, logger log.Logger) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("local config override file unreadable, ignoring", "path", path, "error", err)
		return cfg
	}

	var overrides localConfigOverrides
	if err := json.Unmarshal(data, &overrides); err != nil {
		logger.Warn("local config override file is not valid JSON, ignoring", "path", path, "error", err)
		return cfg
	}

	if overrides.ModelType != nil {
		cfg.ModelType = model.Kind(*overrides.ModelType)
	}
	if overrides.ModelName != nil {
		cfg.ModelName = *overrides.ModelName
	}
	if overrides.ModelBaseURL != nil {
		cfg.ModelBaseURL = *overrides.ModelBaseURL
	}
	if overrides.ModelAPIKey != nil {
		cfg.ModelAPIKey = *overrides.ModelAPIKey
	}
	if overrides.ModelFilePath != nil {
		cfg.ModelFilePath = *overrides.ModelFilePath
	}
	if overrides.WorkerCount != nil {
		cfg.WorkerCount = *overrides.WorkerCount
	}
	if overrides.MaxRetries != nil {
		cfg.MaxRetries = *overrides.MaxRetries
	}
	if overrides.TaskTimeout != nil {
		if d, err := time.ParseDuration(*overrides.TaskTimeout); err == nil {
			cfg.TaskTimeout = d
		} else {
			logger.Warn("local config task_timeout unparsable, ignoring", "value", *overrides.TaskTimeout)
		}
	}
	if overrides.HTTPHost != nil {
		cfg.HTTPHost = *overrides.HTTPHost
	}
	if overrides.HTTPPort != nil {
		cfg.HTTPPort = *overrides.HTTPPort
	}
	if overrides.Branch != nil {
		cfg.Branch = *overrides.Branch
	}
	if overrides.AutoPush != nil {
		cfg.AutoPush = *overrides.AutoPush
	}
	if overrides.CheckpointDays != nil {
		cfg.CheckpointDays = *overrides.CheckpointDays
	}
	if overrides.StateSaveInterval != nil {
		if d, err := time.ParseDuration(*overrides.StateSaveInterval); err == nil {
			cfg.StateSaveInterval = d
		} else {
			logger.Warn("local config state_save_interval unparsable, ignoring", "value", *overrides.StateSaveInterval)
		}
	}
	if overrides.LogLevel != nil {
		cfg.LogLevel = *overrides.LogLevel
	}
	if overrides.ValidatorImage != nil {
		cfg.ValidatorImage = *overrides.ValidatorImage
	}
	if overrides.TestCommand != nil {
		cfg.TestCommand = *overrides.TestCommand
	}
	if overrides.DependencyInstall != nil {
		cfg.DependencyInstall = *overrides.DependencyInstall
	}
	if overrides.RequireTestsPass != nil {
		cfg.RequireTestsPass = *overrides.RequireTestsPass
	}
	if overrides.ReportsDir != nil {
		cfg.ReportsDir = *overrides.ReportsDir
	}
	if overrides.StateFilePath != nil {
		cfg.StateFilePath = *overrides.StateFilePath
	}

	logger.Info("applied local config overrides", "path", path)
	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(logger log.Logger, key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		logger.Warn("invalid integer for env var, using default", "key", key, "default", defaultValue)
	}
	return defaultValue
}

func getEnvOrDefaultDuration(logger log.Logger, key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		logger.Warn("invalid duration for env var, using default", "key", key, "default", defaultValue)
	}
	return defaultValue
}

func envBool(key string) bool {
	return os.Getenv(key) == "true"
}
