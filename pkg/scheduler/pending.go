package scheduler

import "sync/atomic"

// len returns an approximate count of queued nodes without draining
// them, for metrics reporting; racy with concurrent push/drain by
// design (the same lock-free tradeoff as the queue itself).
func (q *pendingQueue) len() int {
	n := 0
	for p := q.head.Load(); p != nil; p = p.next.Load() {
		n++
	}
	return n
}

// pendingNode is one entry on a RouterThread's pending queue: a request
// to insert (or re-insert) a Task into that thread's heap, deposited by
// another thread or by this Task's own Reschedule fast path when it
// isn't yet on the home thread's heap.
type pendingNode struct {
	task *Task
	next atomic.Pointer[pendingNode]
}

// pendingQueue is the lock-free singly-linked list backing a thread's
// "Pending queue": other threads CAS-push requests, and the home thread
// drains the whole list at the top of each driver-loop iteration.
type pendingQueue struct {
	head atomic.Pointer[pendingNode]
}

// push deposits t onto the queue. Safe to call from any goroutine.
func (q *pendingQueue) push(t *Task) {
	n := &pendingNode{task: t}
	for {
		old := q.head.Load()
		n.next.Store(old)
		if q.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// drain atomically detaches the entire queue and returns its tasks in
// the order they were pushed (oldest first), matching the driver loop's
// expectation of processing pending requests in arrival order.
func (q *pendingQueue) drain() []*Task {
	head := q.head.Swap(nil)
	if head == nil {
		return nil
	}
	// head is a LIFO (most-recently-pushed first); reverse it into
	// arrival order.
	var reversed []*pendingNode
	for n := head; n != nil; n = n.next.Load() {
		reversed = append(reversed, n)
	}
	tasks := make([]*Task, len(reversed))
	for i, n := range reversed {
		tasks[len(reversed)-1-i] = n.task
	}
	return tasks
}
