package queue

import (
	"container/heap"

	"github.com/devloopai/agentcore/internal/task"
)

// entry is one (-priority, sequence, task) tuple. Strict priority order,
// FIFO within a priority level, is the invariant the heap below enforces:
// lower negPriority sorts first (so higher task.Priority dequeues first),
// ties broken by the monotonic seq.
type entry struct {
	negPriority int
	seq         uint64
	task        *task.Task
}

// taskHeap implements container/heap.Interface. It is never accessed
// without the owning Queue's mutex held.
type taskHeap []*entry

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].negPriority != h[j].negPriority {
		return h[i].negPriority < h[j].negPriority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*entry))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*taskHeap)(nil)
