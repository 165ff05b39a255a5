package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshjon/kit/log"
)

const defaultDequeueTimeout = 2 * time.Second

// Pool is the Task Executor: a managed set of Primary Workers sharing a
// Queue, Model Registry, Validator, and Repository Registry. Commits to the
// same repository alias are serialized by aliasLocks so two workers never
// write the same working directory concurrently, per the repository-level
// parallelism rule.
type Pool struct {
	queue     Queue
	store     Store
	model     Model
	validator Validator
	repo      Repository
	logger    log.Logger

	defaultRepo      string
	dequeueTimeout   time.Duration
	requireTestsPass bool

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	workers map[string]*primaryWorker
	wg      sync.WaitGroup
	nextSeq int

	aliasMu    sync.Mutex
	aliasLocks map[string]*sync.Mutex

	paused   atomic.Bool
	resumeCh chan struct{}
}

// Config controls Pool construction.
type Config struct {
	DefaultRepo      string
	DequeueTimeout   time.Duration
	RequireTestsPass bool
}

// New constructs a Pool with no workers running; call Start to launch N
// Primary Workers.
func New(queue Queue, st Store, m Model, v Validator, repo Repository, cfg Config, logger log.Logger) *Pool {
	timeout := cfg.DequeueTimeout
	if timeout <= 0 {
		timeout = defaultDequeueTimeout
	}
	defaultRepo := cfg.DefaultRepo
	if defaultRepo == "" {
		defaultRepo = DefaultRepo
	}

	return &Pool{
		queue:            queue,
		store:            st,
		model:            m,
		validator:        v,
		repo:             repo,
		logger:           logger.With("component", "executor"),
		defaultRepo:      defaultRepo,
		dequeueTimeout:   timeout,
		requireTestsPass: cfg.RequireTestsPass,
		workers:          make(map[string]*primaryWorker),
		aliasLocks:       make(map[string]*sync.Mutex),
		resumeCh:         make(chan struct{}),
	}
}

// lockAlias acquires (creating if necessary) the mutex guarding
// materialize+commit for a repository alias, returning an unlock func.
func (p *Pool) lockAlias(alias string) func() {
	p.aliasMu.Lock()
	m, ok := p.aliasLocks[alias]
	if !ok {
		m = &sync.Mutex{}
		p.aliasLocks[alias] = m
	}
	p.aliasMu.Unlock()

	m.Lock()
	return m.Unlock
}

// Start launches n Primary Workers, each with an auto-assigned ID
// worker-<seq>. Safe to call multiple times to grow the pool; Start does
// not stop any already-running workers.
func (p *Pool) Start(ctx context.Context, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil || p.ctx.Err() != nil {
		p.ctx, p.cancel = context.WithCancel(ctx)
	}

	for i := 0; i < n; i++ {
		p.nextSeq++
		id := fmt.Sprintf("worker-%d", p.nextSeq)
		p.spawnLocked(id)
	}
	p.logger.Info("executor pool started", "workers_added", n, "total_workers", len(p.workers))
}

// spawnLocked creates and launches one worker. Caller must hold p.mu.
func (p *Pool) spawnLocked(id string) {
	workerCtx, cancel := context.WithCancel(p.ctx)
	w := newPrimaryWorker(id, p)
	w.cancel = cancel
	p.workers[id] = w
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		w.run(workerCtx)
	}()
}

// Stop cancels every worker and blocks until in-flight tasks finish and all
// worker goroutines have exited.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.logger.Info("executor pool stopped")
}

// Pause tells every worker to stop claiming new tasks after their current
// one finishes; in-flight work is not interrupted.
func (p *Pool) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused.Store(true)
	for _, w := range p.workers {
		w.pause()
	}
}

// Resume releases a prior Pause and wakes every goroutine blocked in
// WaitForResume.
func (p *Pool) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused.Store(false)
	for _, w := range p.workers {
		w.resume()
	}
	close(p.resumeCh)
	p.resumeCh = make(chan struct{})
}

// IsPaused reports whether the pool is currently in the paused state, the
// agent_state.is_paused flag the Control API and checkpoint sequence
// report.
func (p *Pool) IsPaused() bool {
	return p.paused.Load()
}

// WaitForResume blocks until Resume is called or ctx is cancelled,
// whichever comes first. It never busy-polls: the caller is woken the
// instant an operator resume arrives, the condition-variable-style
// handoff the checkpoint sequence's cooperative wait requires. Returns
// immediately if the pool is not currently paused.
func (p *Pool) WaitForResume(ctx context.Context) {
	for {
		p.mu.Lock()
		if !p.paused.Load() {
			p.mu.Unlock()
			return
		}
		ch := p.resumeCh
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-ch:
		}
	}
}

// Restart cancels and respawns a single worker under the same ID, resetting
// its counters. Returns false if workerID is unknown.
func (p *Pool) Restart(workerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	old, ok := p.workers[workerID]
	if !ok {
		return false
	}

	old.cancel()
	<-old.done

	p.spawnLocked(workerID)
	p.logger.Warn("worker restarted", "worker_id", workerID)
	return true
}

// Status returns a snapshot of every worker's current state. Order is not
// guaranteed; callers that need a stable order should sort the result.
func (p *Pool) Status() []State {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]State, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.state())
	}
	return out
}

// Size returns the number of workers currently managed by the pool,
// running or stopped.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}
