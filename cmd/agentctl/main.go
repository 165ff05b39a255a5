// Command agentctl is the thin CLI front-end to a running Supervisor's
// Control API: a positional task description plus a flat set of flags,
// each an independent operation rather than a subcommand tree — the same
// shape the operator-facing CLI the original system shipped used. Every
// flag talks to the Control API over HTTP through internal/controlclient;
// agentctl carries no business logic of its own.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joshjon/kit/log"
	"github.com/urfave/cli/v2"

	"github.com/devloopai/agentcore/internal/clicolor"
	"github.com/devloopai/agentcore/internal/controlclient"
	"github.com/devloopai/agentcore/internal/taskfile"
)

func main() {
	logger := log.NewLogger()

	app := &cli.App{
		Name:      "agentctl",
		Usage:     "control a running agentcore Supervisor",
		ArgsUsage: "[task description]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Control API base URL",
				EnvVars: []string{"AGENTCTL_SERVER"},
				Value:   controlclient.DefaultBaseURL,
			},
			&cli.IntFlag{Name: "priority", Usage: "priority for the positional task", Value: 0},
			&cli.StringFlag{Name: "repo", Usage: "target repository alias for the positional task"},
			&cli.BoolFlag{Name: "status", Usage: "print aggregate status"},
			&cli.BoolFlag{Name: "pause", Usage: "pause the worker pool"},
			&cli.BoolFlag{Name: "resume", Usage: "resume the worker pool"},
			&cli.IntFlag{Name: "logs", Usage: "print the N most recent log events", Value: 0},
			&cli.StringFlag{Name: "load-tasks", Usage: "load and enqueue tasks from a JSON/YAML file"},
			&cli.StringFlag{
				Name:  "connect-repo",
				Usage: "connect a repository: \"remote:URL:ALIAS[:BRANCH]\" or \"local:PATH:ALIAS\"",
			},
			&cli.BoolFlag{Name: "list-repos", Usage: "list connected repositories"},
			&cli.StringFlag{Name: "scan-repo", Usage: "scan ALIAS for TODO/FIXME markers and heuristic issues"},
			&cli.StringFlag{Name: "pull-repo", Usage: "pull ALIAS"},
			&cli.StringFlag{Name: "push-repo", Usage: "commit and push ALIAS"},
			&cli.StringFlag{Name: "disconnect-repo", Usage: "disconnect ALIAS"},
			&cli.BoolFlag{Name: "tireless-reviewer-status", Usage: "print the tireless reviewer's stats"},
			&cli.StringFlag{Name: "force-review", Usage: "force an immediate deep review of TASK_ID"},
			&cli.StringFlag{Name: "review-results", Usage: "print review findings for TASK_ID"},
		},
		Action: func(c *cli.Context) error {
			client := controlclient.New(c.String("server"))
			ctx := c.Context
			ran := false

			run := func(fn func() error) error {
				ran = true
				return fn()
			}

			if c.Bool("status") {
				if err := run(func() error { return printStatus(ctx, client) }); err != nil {
					return err
				}
			}
			if c.Bool("pause") {
				if err := run(func() error { return doPause(ctx, client, "pause") }); err != nil {
					return err
				}
			}
			if c.Bool("resume") {
				if err := run(func() error { return doPause(ctx, client, "resume") }); err != nil {
					return err
				}
			}
			if n := c.Int("logs"); c.IsSet("logs") && n >= 0 {
				if err := run(func() error { return printLogs(ctx, client, n) }); err != nil {
					return err
				}
			}
			if path := c.String("load-tasks"); path != "" {
				if err := run(func() error { return loadTasks(ctx, client, path, logger) }); err != nil {
					return err
				}
			}
			if spec := c.String("connect-repo"); spec != "" {
				if err := run(func() error { return connectRepo(ctx, client, spec) }); err != nil {
					return err
				}
			}
			if c.Bool("list-repos") {
				if err := run(func() error { return listRepos(ctx, client) }); err != nil {
					return err
				}
			}
			if alias := c.String("scan-repo"); alias != "" {
				if err := run(func() error { return scanRepo(ctx, client, alias) }); err != nil {
					return err
				}
			}
			if alias := c.String("pull-repo"); alias != "" {
				if err := run(func() error { return pullRepo(ctx, client, alias) }); err != nil {
					return err
				}
			}
			if alias := c.String("push-repo"); alias != "" {
				if err := run(func() error { return pushRepo(ctx, client, alias) }); err != nil {
					return err
				}
			}
			if alias := c.String("disconnect-repo"); alias != "" {
				if err := run(func() error { return disconnectRepo(ctx, client, alias) }); err != nil {
					return err
				}
			}
			if c.Bool("tireless-reviewer-status") {
				if err := run(func() error { return reviewerStatus(ctx, client) }); err != nil {
					return err
				}
			}
			if id := c.String("force-review"); id != "" {
				if err := run(func() error { return forceReview(ctx, client, id) }); err != nil {
					return err
				}
			}
			if id := c.String("review-results"); id != "" {
				if err := run(func() error { return reviewResults(ctx, client, id) }); err != nil {
					return err
				}
			}

			if desc := strings.TrimSpace(strings.Join(c.Args().Slice(), " ")); desc != "" {
				if err := run(func() error { return createTask(ctx, client, desc, c.Int("priority"), c.String("repo")) }); err != nil {
					return err
				}
			}

			if !ran {
				return cli.ShowAppHelp(c)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, clicolor.Failure(err.Error()))
		os.Exit(1)
	}
}

func printStatus(ctx context.Context, c *controlclient.Client) error {
	status, err := c.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("paused:     %v\n", status.AgentState.IsPaused)
	fmt.Printf("queue size: %d\n", status.Queue.Size)
	fmt.Printf("tasks:      pending=%d running=%d completed=%d failed=%d\n",
		status.TaskStats.Pending, status.TaskStats.Running, status.TaskStats.Completed, status.TaskStats.Failed)
	fmt.Printf("model:      active=%s availability=%v\n", status.Model.Active, status.Model.Availability)
	fmt.Printf("repos:      count=%d aliases=%v\n", status.Repositories.Count, status.Repositories.Aliases)
	return nil
}

func doPause(ctx context.Context, c *controlclient.Client, action string) error {
	paused, err := c.Pause(ctx, action)
	if err != nil {
		return err
	}
	fmt.Println(clicolor.Success(fmt.Sprintf("is_paused=%v", paused)))
	return nil
}

func printLogs(ctx context.Context, c *controlclient.Client, limit int) error {
	events, err := c.Logs(ctx, limit)
	if err != nil {
		return err
	}
	for _, e := range events {
		clicolor.Write(os.Stdout, e.Component, string(e.Level), e.Message)
	}
	return nil
}

func loadTasks(ctx context.Context, c *controlclient.Client, path string, logger log.Logger) error {
	loader := taskfile.NewLoader(path, c, taskfile.Config{}, logger)
	n, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	fmt.Println(clicolor.Success(fmt.Sprintf("enqueued %d task(s) from %s", n, path)))
	return nil
}

// connectRepo parses "remote:URL:ALIAS[:BRANCH]" or "local:PATH:ALIAS".
func connectRepo(ctx context.Context, c *controlclient.Client, spec string) error {
	parts := strings.Split(spec, ":")
	if len(parts) < 3 {
		return fmt.Errorf("connect-repo: expected TYPE:URL_OR_PATH:ALIAS[:BRANCH], got %q", spec)
	}

	req := controlclient.ConnectRepoRequest{
		Type:  parts[0],
		Alias: parts[2],
	}
	switch req.Type {
	case "remote":
		req.URL = parts[1]
		if len(parts) > 3 {
			req.Branch = parts[3]
		}
	case "local":
		req.Path = parts[1]
		req.InitializeGit = true
	default:
		return fmt.Errorf("connect-repo: unknown type %q, expected remote or local", req.Type)
	}

	binding, err := c.ConnectRepository(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(clicolor.Success(fmt.Sprintf("connected %s (%s) at %s", binding.Alias, binding.Kind, binding.WorkingDir)))
	return nil
}

func listRepos(ctx context.Context, c *controlclient.Client) error {
	repos, err := c.ListRepositories(ctx)
	if err != nil {
		return err
	}
	for _, r := range repos {
		fmt.Printf("%s\t%s\t%s\tactive=%v\n", r.Alias, r.Kind, r.WorkingDir, r.Active)
	}
	return nil
}

func scanRepo(ctx context.Context, c *controlclient.Client, alias string) error {
	result, err := c.ScanRepository(ctx, alias)
	if err != nil {
		return err
	}
	fmt.Printf("candidate tasks (%d):\n", len(result.Tasks))
	for _, t := range result.Tasks {
		fmt.Printf("  - %s\n", t)
	}
	fmt.Printf("issues (%d):\n", len(result.Issues))
	for _, i := range result.Issues {
		fmt.Printf("  - %s\n", i)
	}
	return nil
}

func pullRepo(ctx context.Context, c *controlclient.Client, alias string) error {
	if err := c.PullRepository(ctx, alias); err != nil {
		return err
	}
	fmt.Println(clicolor.Success(alias + ": pulled"))
	return nil
}

func pushRepo(ctx context.Context, c *controlclient.Client, alias string) error {
	result, err := c.PushRepository(ctx, alias)
	if err != nil {
		return err
	}
	switch {
	case result.Remoteless:
		fmt.Println(clicolor.Success(alias + ": committed (no remote configured)"))
	case result.Noop:
		fmt.Println(clicolor.Success(alias + ": nothing to commit"))
	default:
		fmt.Println(clicolor.Success(alias + ": pushed " + result.Commit))
	}
	return nil
}

func disconnectRepo(ctx context.Context, c *controlclient.Client, alias string) error {
	if err := c.DisconnectRepository(ctx, alias, false); err != nil {
		return err
	}
	fmt.Println(clicolor.Success(alias + ": disconnected"))
	return nil
}

func reviewerStatus(ctx context.Context, c *controlclient.Client) error {
	stats, err := c.ReviewerStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("reviewed=%d issues=%d improvements=%d major_tasks_respected=%d\n",
		stats.TasksReviewed, stats.IssuesDiscovered, stats.ImprovementsSuggested, stats.MajorTasksRespected)
	return nil
}

func forceReview(ctx context.Context, c *controlclient.Client, taskID string) error {
	if err := c.ForceReview(ctx, taskID); err != nil {
		return err
	}
	fmt.Println(clicolor.Success(taskID + ": review forced"))
	return nil
}

func reviewResults(ctx context.Context, c *controlclient.Client, taskID string) error {
	findings, err := c.ReviewerResults(ctx, taskID)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		fmt.Println("no findings")
		return nil
	}
	for _, f := range findings {
		fmt.Printf("[%s/%s] %s\n", f.Kind, f.Category, strings.Join(f.Issues, "; "))
	}
	return nil
}

func createTask(ctx context.Context, c *controlclient.Client, description string, priority int, repo string) error {
	var (
		id  interface{ String() string }
		err error
	)
	if repo != "" {
		id, err = c.CreateTaskWithRepo(ctx, description, repo, priority)
	} else {
		id, err = c.CreateTask(ctx, description, priority)
	}
	if err != nil {
		return err
	}
	fmt.Println(clicolor.Success("created task " + id.String()))
	return nil
}
