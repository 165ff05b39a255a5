// Package controlapi implements the Control API: the HTTP-style façade
// described as "transport replaceable" — every handler here depends only
// on narrow interfaces over the Queue, Store, Model Registry, Executor
// Pool, Repository Registry, and Tireless Reviewer, so the façade itself
// carries no business logic of its own.
package controlapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/joshjon/kit/errtag"
	"github.com/joshjon/kit/log"
	"github.com/labstack/echo/v4"

	"github.com/devloopai/agentcore/internal/executor"
	"github.com/devloopai/agentcore/internal/model"
	"github.com/devloopai/agentcore/internal/repository"
	"github.com/devloopai/agentcore/internal/reviewer"
	"github.com/devloopai/agentcore/internal/store"
	"github.com/devloopai/agentcore/internal/task"
)

// Queue is the subset of *queue.Queue the Control API depends on.
type Queue interface {
	Put(ctx context.Context, t *task.Task) (bool, error)
	Size() int
}

// Store is the subset of *store.Store the Control API depends on.
type Store interface {
	TaskStats(ctx context.Context) (store.TaskStats, error)
	RecentEvents(ctx context.Context, limit int) ([]store.Event, error)
	RecentCommits(ctx context.Context, limit int) ([]store.CommitRecord, error)
}

// ModelRegistry is the subset of *model.Registry the Control API depends
// on.
type ModelRegistry interface {
	Active() model.Kind
	Switch(ctx context.Context, kind model.Kind) bool
	Availability(ctx context.Context) map[model.Kind]bool
}

// ExecutorPool is the subset of *executor.Pool the Control API depends
// on.
type ExecutorPool interface {
	Status() []executor.State
	Pause()
	Resume()
	IsPaused() bool
	Restart(workerID string) bool
	Size() int
}

// RepositoryRegistry is the subset of *repository.Registry the Control
// API depends on.
type RepositoryRegistry interface {
	List() []*repository.Binding
	Get(alias string) (*repository.Binding, error)
	ConnectRemote(ctx context.Context, url, alias, branch string) (*repository.Binding, error)
	ConnectLocal(ctx context.Context, path, alias string, initGit bool) (*repository.Binding, error)
	Disconnect(alias string, removeFiles bool) error
	Pull(ctx context.Context, alias string) repository.PullResult
	CommitAndPush(ctx context.Context, alias, message string) repository.CommitResult
	Scan(alias string) (repository.ScanResult, error)
}

// Reviewer is the subset of *reviewer.Reviewer the Control API depends
// on.
type Reviewer interface {
	CurrentStats() reviewer.Stats
	ForceReview(ctx context.Context, taskID task.ID) error
	Results(ctx context.Context, taskID string) ([]store.ReviewFinding, error)
}

// Config controls request defaults the handler applies when a caller
// omits an optional field.
type Config struct {
	DefaultPriority   int
	DefaultMaxRetries int
	DefaultRepo       string
	LogPollInterval   time.Duration // GET /logs/stream poll cadence, default 2s
}

func (c Config) withDefaults() Config {
	if c.DefaultMaxRetries <= 0 {
		c.DefaultMaxRetries = 3
	}
	if c.DefaultRepo == "" {
		c.DefaultRepo = executor.DefaultRepo
	}
	if c.LogPollInterval <= 0 {
		c.LogPollInterval = 2 * time.Second
	}
	return c
}

// Handler serves the Control API over an echo.Group.
type Handler struct {
	queue    Queue
	store    Store
	models   ModelRegistry
	pool     ExecutorPool
	repos    RepositoryRegistry
	reviewer Reviewer
	cfg      Config
	logger   log.Logger
}

// NewHandler constructs a Handler. Any dependency may be nil; handlers
// that need a nil dependency report 503 rather than panicking.
func NewHandler(q Queue, st Store, models ModelRegistry, pool ExecutorPool, repos RepositoryRegistry, rev Reviewer, cfg Config, logger log.Logger) *Handler {
	return &Handler{
		queue:    q,
		store:    st,
		models:   models,
		pool:     pool,
		repos:    repos,
		reviewer: rev,
		cfg:      cfg.withDefaults(),
		logger:   logger.With("component", "control-api"),
	}
}

// Register adds every Control API endpoint to g.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/status", h.Status)
	g.GET("/logs", h.Logs)
	g.GET("/logs/stream", h.LogsStream)

	g.POST("/task", h.CreateTask)
	g.POST("/task/with-repo", h.CreateTaskWithRepo)

	g.POST("/pause", h.Pause)
	g.POST("/restart-worker", h.RestartWorker)
	g.POST("/settings", h.Settings)

	g.GET("/git/commits", h.GitCommits)

	g.GET("/repositories", h.ListRepositories)
	g.POST("/repositories/connect", h.ConnectRepository)
	g.POST("/repositories/:alias/disconnect", h.DisconnectRepository)
	g.POST("/repositories/:alias/pull", h.PullRepository)
	g.POST("/repositories/:alias/push", h.PushRepository)
	g.POST("/repositories/:alias/scan", h.ScanRepository)

	g.GET("/tireless-reviewer/status", h.ReviewerStatus)
	g.POST("/tireless-reviewer/force/:task_id", h.ForceReview)
	g.GET("/tireless-reviewer/results/:task_id", h.ReviewerResults)
}

// envelope builds the {ok: true, ...} success body every response carries.
func envelope(fields map[string]any) map[string]any {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["ok"] = true
	return fields
}

func ok(c echo.Context, code int, fields map[string]any) error {
	return c.JSON(code, envelope(fields))
}

func errResponse(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]any{"ok": false, "error": msg})
}

// jsonError maps an errtag-tagged error to its HTTP status, per the
// Control API's "{ok: false, error}" failure contract.
func jsonError(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	msg := "internal server error"

	var tagger errtag.Tagger
	if errors.As(err, &tagger) {
		code = tagger.Code()
		msg = tagger.Msg()
	}
	return errResponse(c, code, msg)
}

func unavailable(c echo.Context, component string) error {
	return errResponse(c, http.StatusServiceUnavailable, component+" is not configured")
}
