// Package scheduler implements the cooperative, stride-scheduled task
// runtime of a Task bound to an element and a home thread, a
// per-thread 4-ary min-heap run queue keyed on stride-scheduling pass, a
// lock-free pending queue for cross-thread task migration, a RouterThread
// driver loop, and a Master arbitrating router stop.
package scheduler

import (
	"github.com/cuemby/clickcore/pkg/clickatomic"
	"github.com/cuemby/clickcore/pkg/element"
)

// Stride-scheduling constants: these are tunable configuration, never a
// stability contract.
const (
	// Stride1 is the numerator of stride = Stride1 / tickets, chosen
	// (as in the historical source) so that MaxTickets evenly divides
	// it with headroom.
	Stride1 = 1 << 20
	// MaxTickets bounds a Task's requested ticket count.
	MaxTickets = 1 << 15
	// MinTickets is the floor; a Task always gets at least one firing
	// opportunity per full cycle of the heap.
	MinTickets = 1
	// TasksPerIter bounds how many tasks a single driver-loop iteration
	// fires before yielding to pending-queue drain and OS-yield
	// bookkeeping (userlevel value from the historical routerthread.cc).
	TasksPerIter = 128
	// ItersPerOS is how many loop iterations occur between each
	// OS-yield step.
	ItersPerOS = 2
)

// stride returns the pass increment for a Task requesting tickets.
func stride(tickets int) int64 {
	if tickets < MinTickets {
		tickets = MinTickets
	}
	if tickets > MaxTickets {
		tickets = MaxTickets
	}
	return int64(Stride1) / int64(tickets)
}

// Task is a schedulable unit bound to an Element and a thread. Its
// status word packs home_thread_id/is_scheduled/is_strong_unscheduled
// into one atomically-swapped word so
// cross-thread migration never needs a separate lock for the common
// case.
type Task struct {
	status clickatomic.PackedWord

	runnable element.Runnable

	tickets int
	strideV int64
	pass    int64

	heapIndex int // -1 when not in any heap

	master *Master

	// cycles counts firings, feeding the optional adaptive-share
	// utilization estimate.
	cycles uint64
}

// NewTask returns a Task bound to runnable, initially homed on
// homeThread with 1 ticket (fair share), not yet scheduled. Call
// master.Schedule(t) (or t.Schedule()) to make it eligible to fire.
func NewTask(runnable element.Runnable, homeThread int32) *Task {
	t := &Task{
		runnable:  runnable,
		tickets:   MinTickets,
		strideV:   stride(MinTickets),
		heapIndex: -1,
	}
	t.status.Init(homeThread)
	return t
}

// SetTickets sets the Task's stride-scheduling ticket count, clamped to
// [MinTickets, MaxTickets], recomputing its stride.
func (t *Task) SetTickets(tickets int) {
	if tickets < MinTickets {
		tickets = MinTickets
	}
	if tickets > MaxTickets {
		tickets = MaxTickets
	}
	t.tickets = tickets
	t.strideV = stride(tickets)
}

// Tickets returns the Task's current ticket count.
func (t *Task) Tickets() int { return t.tickets }

// Pass returns the Task's current stride-scheduling pass value, the
// heap's sort key.
func (t *Task) Pass() int64 { return t.pass }

// HomeThreadID returns the thread this Task currently considers home.
func (t *Task) HomeThreadID() int32 { return t.status.Load().HomeThreadID }

// IsScheduled reports whether the Task believes it is on some thread's
// run queue.
func (t *Task) IsScheduled() bool { return t.status.Load().IsScheduled }

// fire runs the Task's element once, bumping pass by its stride. If the
// element did no work, pass is additionally bumped to at least the
// second-smallest pass currently in the heap (passed in by the caller,
// which has heap visibility), so a quiet Task doesn't refire within the
// same burst.
func (t *Task) fire(minSecondPass int64) (workDone bool) {
	workDone = t.runnable.RunTask()
	t.cycles++
	t.pass += t.strideV
	if !workDone && t.pass < minSecondPass {
		t.pass = minSecondPass
	}
	return workDone
}

// Reschedule implements notifier.Listener: a Notifier waking this Task's
// listener calls Reschedule(), which re-inserts it into its home
// thread's run queue (via the pending queue if the caller is on a
// different thread).
func (t *Task) Reschedule() {
	if t.master == nil {
		return
	}
	t.master.schedule(t)
}

// Schedule requests that this Task be scheduled on its home thread. It
// is a no-op if already scheduled.
func (t *Task) Schedule() {
	t.Reschedule()
}

// MoveThread requests cross-thread migration of this Task to newHome:
// the status word's home_thread_id is CAS'd to newHome, and the Task is
// deposited on newHome's pending queue
// for insertion into its heap. The Task's old thread observes on its
// next iteration that the Task is no longer homed there and drops it.
func (t *Task) MoveThread(newHome int32) {
	if t.master == nil {
		t.status.Store(clickatomic.Status{HomeThreadID: newHome, IsScheduled: t.status.Load().IsScheduled})
		return
	}
	t.master.moveThread(t, newHome)
}

// StrongUnschedule atomically marks the Task so the next time its home
// thread's driver loop observes it, it is dropped from the heap without
// refiring.
func (t *Task) StrongUnschedule() {
	for {
		old := t.status.Load()
		next := old
		next.IsStrongUnscheduled = 2
		next.IsScheduled = false
		if t.status.CompareAndSwap(old, next) {
			return
		}
	}
}
