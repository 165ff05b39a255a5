// Package checkpoint renders the periodic summary report the Supervisor's
// checkpoint sequence produces while workers are paused: a plain-text
// digest of a time window covering queue totals, tasks completed (overall
// and per repository), and commits pushed. Review findings are not
// included.
package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devloopai/agentcore/internal/store"
	"github.com/devloopai/agentcore/internal/task"
)

// Window is the half-open interval [Start, End) a report covers.
type Window struct {
	Start time.Time
	End   time.Time
}

// Store is the subset of *store.Store a checkpoint report reads from.
type Store interface {
	TasksCompletedBetween(ctx context.Context, since, until time.Time, limit int) ([]*task.Task, error)
	RecentCommits(ctx context.Context, limit int) ([]store.CommitRecord, error)
	TaskStats(ctx context.Context) (store.TaskStats, error)
}

// Sources bundles the dependencies Render reads from. Store is required;
// a nil Store is a programmer error.
type Sources struct {
	Store Store
}

// maxSampled caps how many completed tasks a report fetches and lists, and
// how many of the most recent commits it scans for the window; the counts
// in a report never exceed it.
const maxSampled = 200

// RepoBreakdown is the per-repository slice of a checkpoint window: how
// many of the tasks completed in the window targeted a given connected
// repository alias. Failures aren't broken out per-alias: MarkFailed never
// stamps completed_at, so a failed task can't be placed in a time window
// without a schema change; the aggregate failed count in QueueStats is
// the only failure figure this report carries.
type RepoBreakdown struct {
	Alias     string
	Completed int
}

// Report is the rendered checkpoint: a human-readable Summary plus the
// raw counts it was built from, for callers that want to log or persist
// the structured form as well.
type Report struct {
	Window         Window
	TasksCompleted int
	CommitsPushed  int
	QueueStats     store.TaskStats
	ByRepo         []RepoBreakdown
	Summary        string
}

// Render assembles a Report for window from src. It never fails the
// caller's checkpoint sequence on a partial read: a failing sub-query is
// logged into the summary as "unavailable" rather than returned as an
// error, except when the Store itself cannot answer TaskStats, which
// signals a store-level problem worth surfacing.
func Render(ctx context.Context, window Window, src Sources) (Report, error) {
	stats, err := src.Store.TaskStats(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("checkpoint: render: %w", err)
	}

	completed, cErr := src.Store.TasksCompletedBetween(ctx, window.Start, window.End, maxSampled)
	commits, mErr := src.Store.RecentCommits(ctx, maxSampled)

	var b strings.Builder
	fmt.Fprintf(&b, "checkpoint report %s -> %s\n", window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	fmt.Fprintf(&b, "queue: pending=%d running=%d completed=%d failed=%d\n",
		stats.Pending, stats.Running, stats.Completed, stats.Failed)

	var byRepo []RepoBreakdown
	if cErr != nil {
		b.WriteString("tasks completed in window: unavailable\n")
	} else {
		fmt.Fprintf(&b, "tasks completed in window: %d\n", len(completed))
		for _, t := range completed {
			fmt.Fprintf(&b, "  - %s: %s\n", t.ID, truncate(t.Description, 80))
		}

		byRepo = groupByRepo(completed)
		if len(byRepo) > 0 {
			b.WriteString("by repository:\n")
			for _, rb := range byRepo {
				fmt.Fprintf(&b, "  - %s: %d completed\n", rb.Alias, rb.Completed)
			}
		}
	}

	commitsInWindow := 0
	if mErr != nil {
		b.WriteString("commits: unavailable\n")
	} else {
		for _, c := range commits {
			if c.CreatedAt.Before(window.Start) || !c.CreatedAt.Before(window.End) {
				continue
			}
			commitsInWindow++
		}
		fmt.Fprintf(&b, "commits pushed in window: %d\n", commitsInWindow)
	}

	return Report{
		Window:         window,
		TasksCompleted: len(completed),
		CommitsPushed:  commitsInWindow,
		QueueStats:     stats,
		ByRepo:         byRepo,
		Summary:        b.String(),
	}, nil
}

// groupByRepo tallies completed tasks by TargetRepo, defaulting untargeted
// tasks to the default repo alias so every completed task is accounted for
// in exactly one bucket. Order is first-seen, not alphabetical, so the
// summary reads in roughly chronological order.
func groupByRepo(completed []*task.Task) []RepoBreakdown {
	order := make([]string, 0, len(completed))
	counts := make(map[string]int, len(completed))
	for _, t := range completed {
		alias := t.TargetRepo
		if alias == "" {
			alias = "default"
		}
		if _, seen := counts[alias]; !seen {
			order = append(order, alias)
		}
		counts[alias]++
	}

	out := make([]RepoBreakdown, 0, len(order))
	for _, alias := range order {
		out = append(out, RepoBreakdown{Alias: alias, Completed: counts[alias]})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
