// Command supervisor runs one agentcore process: the Event Store,
// Persistent Priority Queue, Repository Registry, Model Adapter Registry,
// Task Executor pool, Tireless Reviewer, and Control API, all wired by
// internal/supervisor and configured entirely from the environment.
// Workers are goroutines inside this one process, not separate OS
// processes — there is deliberately no companion worker binary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshjon/kit/log"

	"github.com/devloopai/agentcore/internal/supervisor"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.NewLogger(log.WithDevelopment())
	cfg := supervisor.ConfigFromEnv(logger)

	s, err := supervisor.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to construct supervisor", "error", err)
		os.Exit(1)
	}

	logger.Info("supervisor starting",
		"http_port", cfg.HTTPPort,
		"worker_count", cfg.WorkerCount,
		"model_type", cfg.ModelType,
		"reviewer_enabled", cfg.ReviewerEnabled,
	)

	if err := s.Run(ctx); err != nil {
		logger.Error("supervisor exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("supervisor stopped")
}
