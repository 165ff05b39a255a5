// Package queue implements the Persistent Priority Queue: an in-memory
// heap mirrored to the Event Store, surviving restart by reloading all
// non-terminal tasks. Strict priority order holds across the queue; FIFO
// within a priority level is guaranteed by a monotonic sequence counter.
package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"github.com/joshjon/kit/log"

	"github.com/devloopai/agentcore/internal/store"
	"github.com/devloopai/agentcore/internal/task"
)

// Store is the subset of *store.Store the Queue depends on.
type Store interface {
	RecordTaskCreated(ctx context.Context, t *task.Task) error
	LoadOpenTasks(ctx context.Context) ([]*task.Task, error)
	RequeueAsPending(ctx context.Context, taskID task.ID, priority, retryCount int) error
	PruneCompleted(ctx context.Context, olderThanDays int) (int64, error)
}

var _ Store = (*store.Store)(nil)

// Queue is the persistent priority queue. The zero value is not usable;
// construct with New.
type Queue struct {
	store  Store
	logger log.Logger

	mu        sync.Mutex
	heap      taskHeap
	seq       uint64
	pendingCh chan struct{}

	initOnce sync.Once
}

// New constructs a Queue backed by the given store.
func New(s Store, logger log.Logger) *Queue {
	return &Queue{
		store:     s,
		logger:    logger.With("component", "queue"),
		pendingCh: make(chan struct{}),
	}
}

// Initialize loads all open (pending or running) tasks from the store into
// the in-memory heap, resetting running tasks back to pending — the
// crash-recovery step. Idempotent: a second call is a no-op.
func (q *Queue) Initialize(ctx context.Context) error {
	var initErr error
	q.initOnce.Do(func() {
		initErr = q.initialize(ctx)
	})
	return initErr
}

func (q *Queue) initialize(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	open, err := q.store.LoadOpenTasks(ctx)
	if err != nil {
		return fmt.Errorf("queue: initialize: %w", err)
	}

	for _, t := range open {
		if t.Status == task.StatusRunning {
			if err := q.store.RequeueAsPending(ctx, t.ID, t.Priority, t.RetryCount); err != nil {
				return fmt.Errorf("queue: initialize: requeue running task %s: %w", t.ID, err)
			}
			t.Status = task.StatusPending
			t.WorkerID = ""
		}
		q.pushLocked(t)
	}

	q.logger.Info("queue initialized", "loaded", len(open))
	return nil
}

// Put records the task to the store then inserts it into the heap,
// signalling any blocked Get.
func (q *Queue) Put(ctx context.Context, t *task.Task) (bool, error) {
	if err := q.store.RecordTaskCreated(ctx, t); err != nil {
		return false, fmt.Errorf("queue: put: %w", err)
	}

	q.mu.Lock()
	q.pushLocked(t)
	q.mu.Unlock()

	return true, nil
}

// pushLocked inserts t into the heap. Caller must hold q.mu.
func (q *Queue) pushLocked(t *task.Task) {
	q.seq++
	heap.Push(&q.heap, &entry{negPriority: -t.Priority, seq: q.seq, task: t})
	q.notifyPendingLocked()
}

// notifyPendingLocked wakes every goroutine blocked in Get. Caller must
// hold q.mu.
func (q *Queue) notifyPendingLocked() {
	close(q.pendingCh)
	q.pendingCh = make(chan struct{})
}

// Get blocks until a task is available or ctx is done, then returns the
// highest-priority task (FIFO within a priority level).
func (q *Queue) Get(ctx context.Context) (*task.Task, error) {
	for {
		if t, ok := q.TryGet(); ok {
			return t, nil
		}

		q.mu.Lock()
		wake := q.pendingCh
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

// TryGet is the non-blocking variant: it returns (nil, false) if the heap
// is empty.
func (q *Queue) TryGet() (*task.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil, false
	}
	e := heap.Pop(&q.heap).(*entry)
	return e.task, true
}

// Size returns the number of tasks currently held in the heap.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Empty reports whether the heap currently holds no tasks.
func (q *Queue) Empty() bool {
	return q.Size() == 0
}

// Retry re-enters a failed task into the queue if it has retries
// remaining: increments retry_count, resets status to pending, decrements
// priority by one (floored at zero), and re-inserts. Returns false if the
// task has exhausted its retries.
func (q *Queue) Retry(ctx context.Context, t *task.Task) (bool, error) {
	if !t.CanRetry() {
		return false, nil
	}

	t.RetryCount++
	t.Status = task.StatusPending
	t.WorkerID = ""
	if t.Priority > 0 {
		t.Priority--
	}

	if err := q.store.RequeueAsPending(ctx, t.ID, t.Priority, t.RetryCount); err != nil {
		return false, fmt.Errorf("queue: retry: %w", err)
	}

	q.mu.Lock()
	q.pushLocked(t)
	q.mu.Unlock()

	return true, nil
}

// PruneCompleted deletes completed/failed tasks older than the given
// number of days from the store. It does not touch the in-memory heap,
// which never holds terminal tasks.
func (q *Queue) PruneCompleted(ctx context.Context, olderThanDays int) (int64, error) {
	n, err := q.store.PruneCompleted(ctx, olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("queue: prune completed: %w", err)
	}
	return n, nil
}
