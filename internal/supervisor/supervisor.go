// Package supervisor wires the Event Store, Persistent Priority Queue,
// Repository Registry, Model Adapter Registry, Task Executor, Tireless
// Reviewer, and Control API into one process: it owns component
// construction order, crash-recovery snapshot loading, the three
// background timers (state save, retention, checkpoint), and graceful
// shutdown.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joshjon/kit/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/devloopai/agentcore/internal/checkpoint"
	"github.com/devloopai/agentcore/internal/controlapi"
	"github.com/devloopai/agentcore/internal/executor"
	"github.com/devloopai/agentcore/internal/model"
	"github.com/devloopai/agentcore/internal/queue"
	"github.com/devloopai/agentcore/internal/repository"
	"github.com/devloopai/agentcore/internal/reviewer"
	"github.com/devloopai/agentcore/internal/store"
	"github.com/devloopai/agentcore/internal/taskfile"
	"github.com/devloopai/agentcore/internal/validator"
)

// Supervisor owns every long-lived component of one agent runtime
// process and the timers that drive background maintenance.
type Supervisor struct {
	cfg    Config
	logger log.Logger

	store         *store.Store
	queue         *queue.Queue
	repos         *repository.Registry
	models        *model.Registry
	validator     *validator.Pipeline
	validatorRun  *validator.Runner
	pool          *executor.Pool
	reviewer      *reviewer.Reviewer
	echo          *echo.Echo
	taskFiles     *taskfile.Loader

	uptimeStart    time.Time
	lastCheckpoint *time.Time
}

// New constructs every component in dependency order — Store, Queue,
// Repository Registry, Model Adapter Registry, Executor Pool, Tireless
// Reviewer, Control API — without starting any of them. Call Run to bring
// the process up.
func New(ctx context.Context, cfg Config, logger log.Logger) (*Supervisor, error) {
	cfg = cfg.withDefaults()
	logger = logger.With("component", "supervisor")

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("supervisor: open store: %w", err)
	}

	q := queue.New(st, logger)

	repos, err := repository.NewRegistry(cfg.ReposBaseDir, cfg.ReposBaseDir+"/repositories.json", logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("supervisor: open repository registry: %w", err)
	}

	adapters := buildAdapters(cfg)
	models := model.NewRegistry(st, logger, 0, adapters...)
	if err := models.Initialize(ctx, cfg.ModelType); err != nil {
		logger.Warn("no model adapter available at startup", "error", err)
	}

	runner, err := validator.NewRunner(cfg.ValidatorImage, logger)
	if err != nil {
		logger.Warn("validator sandbox unavailable, test-run stage disabled", "error", err)
		runner = nil
	}
	vp := validator.NewPipeline(validator.Config{
		Image:             cfg.ValidatorImage,
		TestCommand:       cfg.TestCommand,
		DependencyInstall: cfg.DependencyInstall,
		Timeout:           cfg.TaskTimeout,
	}, runner, logger)

	pool := executor.New(q, st, models, vp, repos, executor.Config{
		DefaultRepo:      executor.DefaultRepo,
		DequeueTimeout:   2 * time.Second,
		RequireTestsPass: cfg.RequireTestsPass,
	}, logger)

	var rev *reviewer.Reviewer
	if cfg.ReviewerEnabled {
		rev = reviewer.New(st, q, models, repos, reviewer.Config{
			PrimaryInterval:  cfg.ReviewInterval,
			DeepInterval:     cfg.DeepReviewInterval,
			GracePeriod:      time.Duration(cfg.MajorTaskGraceDays) * 24 * time.Hour,
			CreateFollowUps:  cfg.CreateFollowUpTasks,
			ConsultModel:     true,
			DeepLookbackDays: cfg.CheckpointDays,
		}, logger)
	}

	// A nil *reviewer.Reviewer must reach NewHandler as a true nil
	// interface so the Control API's own "not configured" check applies,
	// rather than a non-nil interface wrapping a nil pointer.
	var controlReviewer controlapi.Reviewer
	if rev != nil {
		controlReviewer = rev
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	handler := controlapi.NewHandler(q, st, models, pool, repos, controlReviewer, controlapi.Config{
		DefaultMaxRetries: cfg.MaxRetries,
		DefaultRepo:       executor.DefaultRepo,
	}, logger)
	handler.Register(e.Group("/api/v1"))

	var loader *taskfile.Loader
	if cfg.TaskFilePath != "" {
		loader = taskfile.NewLoader(cfg.TaskFilePath, q, taskfile.Config{
			DefaultMaxRetries: cfg.MaxRetries,
			DefaultRepo:       executor.DefaultRepo,
		}, logger)
	}

	return &Supervisor{
		cfg:          cfg,
		logger:       logger,
		store:        st,
		queue:        q,
		repos:        repos,
		models:       models,
		validator:    vp,
		validatorRun: runner,
		pool:         pool,
		reviewer:     rev,
		echo:         e,
		taskFiles:    loader,
	}, nil
}

func buildAdapters(cfg Config) []model.Adapter {
	var adapters []model.Adapter
	adapters = append(adapters, model.NewHTTPLocalAdapter(cfg.ModelBaseURL, cfg.ModelName))
	adapters = append(adapters, model.NewHostedAdapter(cfg.ModelBaseURL, cfg.ModelAPIKey, cfg.ModelName))
	adapters = append(adapters, model.NewFileBackedAdapter(cfg.ModelFilePath, cfg.ModelName))
	return adapters
}

// Run loads any persisted snapshot, starts every component, and blocks
// until ctx is cancelled, at which point it drains workers, stops the
// reviewer and HTTP server, and saves a final snapshot.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.loadSnapshot(ctx); err != nil {
		s.logger.Warn("failed to load prior snapshot, starting fresh", "error", err)
	}
	if s.uptimeStart.IsZero() {
		s.uptimeStart = time.Now()
	}

	if err := s.queue.Initialize(ctx); err != nil {
		return fmt.Errorf("supervisor: initialize queue: %w", err)
	}

	s.pool.Start(ctx, s.cfg.WorkerCount)
	if s.reviewer != nil {
		s.reviewer.Start(ctx)
	}

	go s.backgroundStateSave(ctx)
	go s.backgroundRetention(ctx)
	go s.backgroundCheckpoint(ctx)

	if s.taskFiles != nil {
		if _, err := s.taskFiles.Load(ctx); err != nil {
			s.logger.Warn("failed to load task file at startup", "error", err)
		}
		go func() {
			if err := s.taskFiles.Watch(ctx); err != nil {
				s.logger.Error("task file watcher stopped", "error", err)
			}
		}()
	}

	defer s.shutdown()

	return s.serve(ctx)
}

// serve starts the Control API over HTTP and blocks until ctx is
// cancelled or the server itself fails.
func (s *Supervisor) serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.HTTPHost, s.cfg.HTTPPort)

	errs := make(chan error, 1)
	s.logger.Info("starting control api", "address", addr)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("start control api: %w", err)
			return
		}
		errs <- nil
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("control api shutdown error", "error", err)
		}
		return nil
	}
}

// shutdown drains workers and the reviewer and persists a final
// snapshot. It runs after serve returns, whether from cancellation or
// server failure.
func (s *Supervisor) shutdown() {
	s.pool.Stop()
	if s.reviewer != nil {
		s.reviewer.Stop()
	}
	if s.validatorRun != nil {
		if err := s.validatorRun.Close(); err != nil {
			s.logger.Warn("failed to close validator sandbox client", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.saveSnapshot(ctx); err != nil {
		s.logger.Error("failed to save final snapshot", "error", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close store", "error", err)
	}
}

func (s *Supervisor) loadSnapshot(ctx context.Context) error {
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		snap, err = s.loadSnapshotFile()
		if err != nil {
			s.logger.Warn("failed to read state.json fallback", "path", s.cfg.StateFilePath, "error", err)
		}
	}
	if snap == nil {
		return nil
	}
	s.uptimeStart = snap.UptimeStart
	s.lastCheckpoint = snap.LastCheckpoint
	s.logger.Info("loaded prior snapshot",
		"uptime_start", snap.UptimeStart, "last_checkpoint", snap.LastCheckpoint)
	return nil
}

func (s *Supervisor) saveSnapshot(ctx context.Context) error {
	states := s.pool.Status()
	workerStates := make([]store.WorkerState, 0, len(states))
	for _, st := range states {
		ws := store.WorkerState{
			WorkerID:       st.ID,
			Status:         string(st.Status),
			CurrentTaskID:  st.CurrentTask,
			CompletedCount: int(st.CompletedCount),
			FailedCount:    int(st.FailedCount),
		}
		if !st.StartedAt.IsZero() {
			t := st.StartedAt
			ws.StartedAt = &t
		}
		workerStates = append(workerStates, ws)
	}

	snap := store.Snapshot{
		UptimeStart:    s.uptimeStart,
		LastCheckpoint: s.lastCheckpoint,
		WorkerStates:   workerStates,
		QueueStats:     store.QueueStats{Size: s.queue.Size()},
		Timestamp:      time.Now(),
	}

	if err := s.saveSnapshotFile(snap); err != nil {
		s.logger.Warn("failed to write state.json fallback", "path", s.cfg.StateFilePath, "error", err)
	}

	return s.store.SaveSnapshot(ctx, snap)
}

// loadSnapshotFile reads the state.json fallback LoadSnapshot falls back to
// when the system_snapshot row has never been written — e.g. a store
// created against a database file different from the one a prior run used.
func (s *Supervisor) loadSnapshotFile() (*store.Snapshot, error) {
	data, err := os.ReadFile(s.cfg.StateFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// saveSnapshotFile mirrors every saved snapshot to state.json alongside the
// system_snapshot row, so crash recovery survives a missing or reset database
// file as long as the state file is still on disk.
func (s *Supervisor) saveSnapshotFile(snap store.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.cfg.StateFilePath, data, 0o644)
}

// backgroundStateSave persists worker states and queue stats every
// STATE_SAVE_INTERVAL, the crash-recovery record loadSnapshot restores on
// the next startup.
func (s *Supervisor) backgroundStateSave(ctx context.Context) {
	logger := s.logger.With("component", "state-save")
	ticker := time.NewTicker(s.cfg.StateSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.saveSnapshot(ctx); err != nil {
				logger.Error("failed to save snapshot", "error", err)
			}
		}
	}
}

// backgroundRetention prunes old events and terminal tasks every hour so
// the Event Store does not grow without bound.
func (s *Supervisor) backgroundRetention(ctx context.Context) {
	logger := s.logger.With("component", "retention")
	ticker := time.NewTicker(s.cfg.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.store.PruneEvents(ctx, s.cfg.MaxLogEntries); err != nil {
				logger.Error("failed to prune events", "error", err)
			} else if n > 0 {
				logger.Info("pruned old events", "count", n)
			}
			if n, err := s.queue.PruneCompleted(ctx, s.cfg.RetentionDays); err != nil {
				logger.Error("failed to prune completed tasks", "error", err)
			} else if n > 0 {
				logger.Info("pruned completed tasks", "count", n)
			}
		}
	}
}

// backgroundCheckpoint checks, on every retention-interval tick, whether
// CHECKPOINT_DAYS have elapsed since the last checkpoint (or since
// uptime_start if none has ever run) and, if so, drives the checkpoint
// sequence: pause workers, render a summary report for the elapsed
// window, mark last_checkpoint, wait for an operator resume signal, then
// resume workers — guaranteed even if rendering the report fails.
func (s *Supervisor) backgroundCheckpoint(ctx context.Context) {
	logger := s.logger.With("component", "checkpoint")
	ticker := time.NewTicker(s.cfg.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			since := s.uptimeStart
			if s.lastCheckpoint != nil {
				since = *s.lastCheckpoint
			}
			if time.Since(since) < time.Duration(s.cfg.CheckpointDays)*24*time.Hour {
				continue
			}
			s.runCheckpoint(ctx, logger, since)
		}
	}
}

// writeCheckpointReport persists a rendered checkpoint's summary to
// reports/weekly_summary_{start}_{end}.md, creating the reports directory
// if it does not yet exist. The checkpoint sequence is not considered to
// have failed if this write fails: the report text was already logged.
func (s *Supervisor) writeCheckpointReport(report checkpoint.Report) (string, error) {
	if err := os.MkdirAll(s.cfg.ReportsDir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	name := fmt.Sprintf("weekly_summary_%s_%s.md",
		report.Window.Start.Format("20060102"), report.Window.End.Format("20060102"))
	path := filepath.Join(s.cfg.ReportsDir, name)
	if err := os.WriteFile(path, []byte(report.Summary), 0o644); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}
	return path, nil
}

func (s *Supervisor) runCheckpoint(ctx context.Context, logger log.Logger, since time.Time) {
	now := time.Now()
	logger.Info("checkpoint triggered", "window_start", since, "window_end", now)

	s.pool.Pause()
	defer s.pool.Resume()

	report, err := checkpoint.Render(ctx, checkpoint.Window{Start: since, End: now}, checkpoint.Sources{
		Store: s.store,
	})
	if err != nil {
		logger.Error("failed to render checkpoint report", "error", err)
	} else {
		logger.Info("checkpoint report ready", "summary", report.Summary)
		if path, err := s.writeCheckpointReport(report); err != nil {
			logger.Error("failed to write checkpoint report file", "error", err)
		} else {
			logger.Info("checkpoint report written", "path", path)
		}
	}

	s.lastCheckpoint = &now
	if saveErr := s.saveSnapshot(ctx); saveErr != nil {
		logger.Error("failed to persist checkpoint timestamp", "error", saveErr)
	}

	logger.Info("paused for checkpoint, awaiting operator resume")
	s.pool.WaitForResume(ctx)
}
