// Package reviewer implements the Tireless Reviewer: a background pool
// that continuously re-examines completed tasks for quality regressions
// on two cadences, a short "primary" pass and a longer "deep" pass, and
// may enqueue follow-up tasks when a review turns up enough issues.
package reviewer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joshjon/kit/log"

	"github.com/devloopai/agentcore/internal/model"
	"github.com/devloopai/agentcore/internal/store"
	"github.com/devloopai/agentcore/internal/task"
)

// majorKeywords gates the major-task-respect rule: a task whose
// description mentions one of these is left alone by the primary
// reviewer for GracePeriod.
var majorKeywords = []string{
	"major", "large", "significant", "important", "critical",
	"epic", "feature", "refactor", "migration", "upgrade", "redesign",
}

const (
	KindPrimary = "primary"
	KindDeep    = "deep"
)

// Category is a single named bucket of review findings.
type Category string

const (
	CategorySyntaxIssues           Category = "syntax_issues"
	CategoryLogicErrors            Category = "logic_errors"
	CategoryIntegrationProblems    Category = "integration_problems"
	CategoryConsistencyIssues      Category = "consistency_issues"
	CategoryImprovementSuggestions Category = "improvement_suggestions"
	CategoryPerformance            Category = "performance"
	CategorySecurity               Category = "security"
	CategoryDocumentation          Category = "documentation"
	CategoryMaintainability        Category = "maintainability"
)

// followUpThreshold is the combined syntax_issues+logic_errors count that
// triggers a follow-up task, per spec.
const followUpThreshold = 3

// Store is the subset of *store.Store the Reviewer depends on.
type Store interface {
	TasksCompletedBetween(ctx context.Context, since, until time.Time, limit int) ([]*task.Task, error)
	GetTask(ctx context.Context, taskID task.ID) (*task.Task, error)
	CommitsForTask(ctx context.Context, taskID string) ([]store.CommitRecord, error)
	AppendReviewFinding(ctx context.Context, f store.ReviewFinding) error
	FindingsForTask(ctx context.Context, taskID string) ([]store.ReviewFinding, error)
}

// Queue is the subset of *queue.Queue the Reviewer depends on, used only
// to enqueue follow-up tasks.
type Queue interface {
	Put(ctx context.Context, t *task.Task) (bool, error)
}

// Model is the subset of *model.Registry the Reviewer optionally
// consults for the logic_errors category.
type Model interface {
	Generate(ctx context.Context, prompt, taskID string) (string, model.Stats, error)
}

// Repository is the subset of *repository.Registry the Reviewer depends
// on to re-read a completed task's generated source.
type Repository interface {
	ReadFile(alias, name string) (string, error)
}

// Config controls cadence, grace period, and follow-up behavior.
type Config struct {
	PrimaryInterval  time.Duration // default 5 min
	DeepInterval     time.Duration // default 30 min
	GracePeriod      time.Duration // default 7 days
	CreateFollowUps  bool
	ConsultModel     bool // whether logic_errors asks the model adapter
	DeepLookbackDays int  // deep reviewer window end, default 7 (168h)
}

func (c Config) withDefaults() Config {
	if c.PrimaryInterval <= 0 {
		c.PrimaryInterval = 5 * time.Minute
	}
	if c.DeepInterval <= 0 {
		c.DeepInterval = 30 * time.Minute
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 7 * 24 * time.Hour
	}
	if c.DeepLookbackDays <= 0 {
		c.DeepLookbackDays = 7
	}
	return c
}

// Stats are the aggregate counters GET /tireless-reviewer/status reports.
type Stats struct {
	TasksReviewed         int64      `json:"tasks_reviewed"`
	IssuesDiscovered      int64      `json:"issues_discovered"`
	ImprovementsSuggested int64      `json:"improvements_suggested"`
	LastReview            *time.Time `json:"last_review,omitempty"`
	MajorTasksRespected   int64      `json:"major_tasks_respected"`
}

// Reviewer runs the two-cadence review pool against completed tasks.
type Reviewer struct {
	store  Store
	queue  Queue
	model  Model
	repo   Repository
	cfg    Config
	logger log.Logger

	mu    sync.Mutex
	stats Stats

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Reviewer. model and repo may be nil: with no model,
// logic_errors is always empty; with no repo, no source files are read,
// so every category comes back empty.
func New(st Store, q Queue, m Model, repo Repository, cfg Config, logger log.Logger) *Reviewer {
	return &Reviewer{
		store:  st,
		queue:  q,
		model:  m,
		repo:   repo,
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "tireless-reviewer"),
	}
}

// Start launches the primary and deep cadence loops. Stop cancels and
// joins both.
func (r *Reviewer) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.loop(runCtx, r.cfg.PrimaryInterval, r.runPrimaryCycle)
	}()
	go func() {
		defer r.wg.Done()
		r.loop(runCtx, r.cfg.DeepInterval, r.runDeepCycle)
	}()

	r.logger.Info("tireless reviewer started",
		"primary_interval", r.cfg.PrimaryInterval.String(),
		"deep_interval", r.cfg.DeepInterval.String())
}

// Stop cancels both cadence loops and waits for them to exit.
func (r *Reviewer) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Reviewer) loop(ctx context.Context, interval time.Duration, cycle func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						r.logger.Error("review cycle panicked", "panic", fmt.Sprintf("%v", rec))
					}
				}()
				cycle(ctx)
			}()
		}
	}
}

// runPrimaryCycle reviews tasks completed in the last 24h, honoring the
// major-task-respect rule.
func (r *Reviewer) runPrimaryCycle(ctx context.Context) {
	now := time.Now()
	tasks, err := r.store.TasksCompletedBetween(ctx, now.Add(-24*time.Hour), now, 0)
	if err != nil {
		r.logger.Error("primary review: load tasks failed", "error", err.Error())
		return
	}

	for _, t := range tasks {
		if r.shouldRespectMajor(t, now) {
			r.mu.Lock()
			r.stats.MajorTasksRespected++
			r.mu.Unlock()
			continue
		}
		r.review(ctx, t, KindPrimary)
	}
}

// runDeepCycle reviews tasks completed between 24h and DeepLookbackDays*24h
// ago, up to 50 per cycle, unconditionally.
func (r *Reviewer) runDeepCycle(ctx context.Context) {
	now := time.Now()
	since := now.Add(-time.Duration(r.cfg.DeepLookbackDays) * 24 * time.Hour)
	until := now.Add(-24 * time.Hour)

	tasks, err := r.store.TasksCompletedBetween(ctx, since, until, 50)
	if err != nil {
		r.logger.Error("deep review: load tasks failed", "error", err.Error())
		return
	}

	for _, t := range tasks {
		r.review(ctx, t, KindDeep)
	}
}

// shouldRespectMajor reports whether t's description names a
// major-task keyword and was completed within the grace period.
func (r *Reviewer) shouldRespectMajor(t *task.Task, now time.Time) bool {
	if t.CompletedAt == nil {
		return false
	}
	if now.Sub(*t.CompletedAt) >= r.cfg.GracePeriod {
		return false
	}
	lower := strings.ToLower(t.Description)
	for _, kw := range majorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ForceReview runs an on-demand deep-kind review of a single task,
// bypassing the major-task-respect rule and cadence windows entirely —
// the POST /tireless-reviewer/force/{task_id} path.
func (r *Reviewer) ForceReview(ctx context.Context, taskID task.ID) error {
	t, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("reviewer: force review: %w", err)
	}
	r.review(ctx, t, KindDeep)
	return nil
}

// Results returns every finding recorded for a task, oldest first — the
// GET /tireless-reviewer/results/{task_id} path.
func (r *Reviewer) Results(ctx context.Context, taskID string) ([]store.ReviewFinding, error) {
	return r.store.FindingsForTask(ctx, taskID)
}

// CurrentStats returns a copy of the running aggregate counters.
func (r *Reviewer) CurrentStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// review performs one pass over a task, categorized per the review kind,
// appends every non-empty category as a ReviewFinding, and — if the
// combined syntax_issues/logic_errors count meets the threshold and
// follow-up creation is enabled — enqueues a follow-up task.
func (r *Reviewer) review(ctx context.Context, t *task.Task, kind string) {
	findings := r.analyze(ctx, t, kind)

	var issueCount, improvementCount int
	for category, issues := range findings {
		if len(issues) == 0 {
			continue
		}
		if err := r.store.AppendReviewFinding(ctx, store.ReviewFinding{
			TaskID:   t.ID.String(),
			Kind:     kind,
			Category: string(category),
			Issues:   issues,
		}); err != nil {
			r.logger.Error("append review finding failed", "task_id", t.ID.String(), "error", err.Error())
			continue
		}
		if category == CategoryImprovementSuggestions {
			improvementCount += len(issues)
		} else {
			issueCount += len(issues)
		}
	}

	r.mu.Lock()
	r.stats.TasksReviewed++
	r.stats.IssuesDiscovered += int64(issueCount)
	r.stats.ImprovementsSuggested += int64(improvementCount)
	now := time.Now()
	r.stats.LastReview = &now
	r.mu.Unlock()

	critical := len(findings[CategorySyntaxIssues]) + len(findings[CategoryLogicErrors])
	if critical >= followUpThreshold && r.cfg.CreateFollowUps && r.queue != nil {
		r.enqueueFollowUp(ctx, t, findings)
	}
}

func (r *Reviewer) enqueueFollowUp(ctx context.Context, t *task.Task, findings map[Category][]string) {
	top := topFindings(findings, 3)
	desc := fmt.Sprintf("Follow up on task %s: address %s", t.ID.String(), strings.Join(top, "; "))
	follow := task.NewTask(desc, 2, t.MaxRetries, t.TargetRepo)

	if _, err := r.queue.Put(ctx, follow); err != nil {
		r.logger.Error("enqueue follow-up task failed", "task_id", t.ID.String(), "error", err.Error())
		return
	}
	r.logger.Warn("follow-up task enqueued", "original_task_id", t.ID.String(), "follow_up_task_id", follow.ID.String())
}

func topFindings(findings map[Category][]string, n int) []string {
	var out []string
	for _, category := range []Category{CategorySyntaxIssues, CategoryLogicErrors} {
		for _, issue := range findings[category] {
			out = append(out, issue)
			if len(out) >= n {
				return out
			}
		}
	}
	return out
}
