// Command demo is a smoke test for a running Supervisor, not a
// user-facing binary: it submits one reference task — implement add,
// subtract, multiply, divide and factorial, the same function set
// internal/validator's math fixture checks — and polls /status until
// the queue has drained it, reporting completed-vs-failed deltas.
// Playing the same role a standalone sanity script plays against a
// long-running service, scaled up from "call five functions and print
// the results" to "watch one real task move through the pipeline."
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/devloopai/agentcore/internal/clicolor"
	"github.com/devloopai/agentcore/internal/controlclient"
)

const referenceTaskDescription = "Implement add, subtract, multiply, divide and factorial functions " +
	"with unit tests covering the zero-division edge case."

func main() {
	server := os.Getenv("AGENTCTL_SERVER")
	client := controlclient.New(server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, client); err != nil {
		fmt.Fprintln(os.Stderr, clicolor.Failure(err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, client *controlclient.Client) error {
	before, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("demo: fetch status before submission: %w", err)
	}

	taskID, err := client.CreateTask(ctx, referenceTaskDescription, 1)
	if err != nil {
		return fmt.Errorf("demo: submit reference task: %w", err)
	}
	fmt.Println(clicolor.Line("demo", "INFO", "submitted reference task "+taskID.String()))

	const pollInterval = 2 * time.Second
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("demo: reference task did not settle before timeout")
		case <-ticker.C:
			after, err := client.Status(ctx)
			if err != nil {
				return fmt.Errorf("demo: fetch status while polling: %w", err)
			}

			completedDelta := after.TaskStats.Completed - before.TaskStats.Completed
			failedDelta := after.TaskStats.Failed - before.TaskStats.Failed

			if failedDelta > 0 {
				return fmt.Errorf("demo: reference task failed (failed count rose by %d)", failedDelta)
			}
			if completedDelta > 0 {
				fmt.Println(clicolor.Success(fmt.Sprintf("reference task %s completed", taskID.String())))
				return nil
			}
		}
	}
}
