package message

import (
	"container/heap"
	"time"
)

// PriorityQueue orders QueueEntry values by (priority desc, enqueue-time
// asc), the discipline §3.1 assigns to QueueEntry and §4.3 relies on for
// fan-out. It is not safe for concurrent use; callers (the broadcaster)
// serialize access under their own mutex.
type PriorityQueue struct {
	items []*QueueEntry
	seq   uint64
}

func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{}
}

func (q *PriorityQueue) Len() int { return len(q.items) }

// heap.Interface plumbing. Less implements priority desc, enqueue-time asc.
func (q *PriorityQueue) less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Message.Priority != b.Message.Priority {
		return a.Message.Priority > b.Message.Priority
	}
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.seq < b.seq
}

// adapter satisfies heap.Interface without exporting mutation methods on
// PriorityQueue itself.
type heapAdapter struct{ q *PriorityQueue }

func (a heapAdapter) Len() int           { return a.q.Len() }
func (a heapAdapter) Less(i, j int) bool { return a.q.less(i, j) }
func (a heapAdapter) Swap(i, j int) {
	a.q.items[i], a.q.items[j] = a.q.items[j], a.q.items[i]
}
func (a heapAdapter) Push(x any) { a.q.items = append(a.q.items, x.(*QueueEntry)) }
func (a heapAdapter) Pop() any {
	old := a.q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	a.q.items = old[:n-1]
	return item
}

// Enqueue adds m to the queue, stamped with enqueuedAt and a monotonic
// sequence number for FIFO tiebreaking within equal priority and time.
func (q *PriorityQueue) Enqueue(m Message, enqueuedAt time.Time) {
	q.seq++
	entry := &QueueEntry{Message: m, EnqueuedAt: enqueuedAt, seq: q.seq}
	heap.Push(heapAdapter{q}, entry)
}

// Pop removes and returns the highest-priority, earliest-enqueued entry.
// ok is false when the queue is empty.
func (q *PriorityQueue) Pop() (entry *QueueEntry, ok bool) {
	if q.Len() == 0 {
		return nil, false
	}
	return heap.Pop(heapAdapter{q}).(*QueueEntry), true
}

// PopBatch removes up to n entries in priority order, for the fan-out
// worker's batch-pop step (§4.3 step 1).
func (q *PriorityQueue) PopBatch(n int) []*QueueEntry {
	out := make([]*QueueEntry, 0, n)
	for i := 0; i < n; i++ {
		e, ok := q.Pop()
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}

// Evict removes the single lowest-priority, latest-enqueued entry — the
// one a full queue sacrifices to admit a higher-priority arrival (§8
// scenario 2). ok is false on an empty queue.
func (q *PriorityQueue) Evict() (entry *QueueEntry, ok bool) {
	if q.Len() == 0 {
		return nil, false
	}
	worst := 0
	for i := 1; i < q.Len(); i++ {
		if q.less(worst, i) {
			worst = i
		}
	}
	return heap.Remove(heapAdapter{q}, worst).(*QueueEntry), true
}
