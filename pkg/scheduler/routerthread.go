package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/clickcore/pkg/clickatomic"
	"github.com/cuemby/clickcore/pkg/log"
	"github.com/rs/zerolog"
)

// RouterThread is one OS-backed driver loop ("Threading
// model"): within a thread, execution is strictly cooperative and
// single-threaded. Tasks homed on this thread live in its own 4-ary
// min-heap, touched only by this thread's own goroutine; other threads
// reach it only through its lock-free pendingQueue.
type RouterThread struct {
	id int32

	heap    taskHeap
	pending pendingQueue

	firings atomic.Uint64

	// taskBlocker is a clickatomic.PackedWord reserved for the
	// task-blocker interlock of live reconfiguration. No code in this
	// package reads or writes it: there is no writer exclusion and no
	// worker increment/decrement around firing.
	taskBlocker clickatomic.PackedWord

	master *Master
	log    zerolog.Logger

	// greedy, when true, skips the OS-yield sleep step entirely: if
	// greedy mode is set, the driver never blocks.
	greedy bool

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

func newRouterThread(id int32, master *Master, greedy bool) *RouterThread {
	return &RouterThread{
		id:     id,
		master: master,
		greedy: greedy,
		log:    log.WithThread(int(id)),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the driver-loop goroutine.
func (rt *RouterThread) Start() {
	go rt.run()
}

// Stop requests the driver loop to exit and blocks until it does.
func (rt *RouterThread) Stop() {
	rt.once.Do(func() { close(rt.stopCh) })
	<-rt.doneCh
}

// ID returns this thread's index within its Master.
func (rt *RouterThread) ID() int32 { return rt.id }

// ScheduledCount returns an approximate count of tasks currently homed
// on this thread's heap, for metrics reporting. Racy with the driver
// loop by design — read for
// observability only, never for scheduling decisions.
func (rt *RouterThread) ScheduledCount() int { return rt.heap.Len() }

// PendingDepth returns an approximate count of requests queued on this
// thread's pending queue, awaiting the next drainPending.
func (rt *RouterThread) PendingDepth() int { return rt.pending.len() }

// FiringsTotal returns the total number of tasks this thread has fired
// since it started.
func (rt *RouterThread) FiringsTotal() uint64 { return rt.firings.Load() }

// run is the per-thread driver loop of "Driver loop":
//  1. check stop_flag / ask Master
//  2. drain the pending queue
//  3. run up to TasksPerIter tasks from the heap
//  4. (signal delivery / pending kernel work — no-op at this layer)
//  5. advance timers — out of scope for this core
//  6. every ItersPerOS iterations, OS-yield (a short sleep standing in
//     for select/epoll/schedule())
func (rt *RouterThread) run() {
	defer close(rt.doneCh)
	rt.log.Debug().Msg("driver loop starting")
	iter := 0
	for {
		select {
		case <-rt.stopCh:
			rt.log.Debug().Msg("driver loop stopping")
			return
		default:
		}

		if rt.master.shouldStop() {
			if !rt.master.confirmStop() {
				continue // a veto (e.g. a DriverManager element) resumes
			}
			return
		}

		rt.drainPending()
		rt.runBurst()

		iter++
		if iter%ItersPerOS == 0 && !rt.greedy {
			rt.osYield()
		}
	}
}

// drainPending inserts every task deposited on this thread's pending
// queue into the local heap, unless it has since been migrated
// elsewhere or strong-unscheduled.
func (rt *RouterThread) drainPending() {
	for _, t := range rt.pending.drain() {
		st := t.status.Load()
		if st.HomeThreadID != rt.id || st.IsStrongUnscheduled == 2 {
			continue
		}
		if t.heapIndex >= 0 {
			// Already in a heap: a duplicate wake, or a migrated task
			// still in its old home's heap, which runBurst deposits here
			// again when it drops it.
			continue
		}
		t.master = rt.master
		rt.heap.Push(t)
	}
}

// runBurst fires up to TasksPerIter tasks from the heap, honoring its
// heap-top-always-next-to-run contract.
func (rt *RouterThread) runBurst() {
	fired := 0
	for fired < TasksPerIter {
		t := rt.heap.Peek()
		if t == nil {
			return
		}
		st := t.status.Load()
		if st.HomeThreadID != rt.id || st.IsStrongUnscheduled == 2 {
			rt.heap.Pop()
			if h := int(st.HomeThreadID); h != int(rt.id) && st.IsStrongUnscheduled != 2 && h >= 0 && h < len(rt.master.threads) {
				// Migrated while still in this heap: the new home's
				// drainPending skipped it as already heaped, so hand it
				// over again now that it has left this heap.
				rt.master.threads[h].pending.push(t)
			} else {
				t.status.Store(clickatomic.Status{HomeThreadID: st.HomeThreadID})
			}
			continue
		}
		rt.heap.Pop()
		second := rt.heap.SecondMinPass()
		t.fire(second)
		fired++
		rt.firings.Add(1)

		// Re-check ownership after firing: RunTask may have triggered
		// a migration of this very task (unusual, but must not corrupt
		// the heap if so).
		st = t.status.Load()
		if st.HomeThreadID == rt.id && st.IsStrongUnscheduled != 2 {
			rt.heap.Push(t)
		} else if h := int(st.HomeThreadID); h != int(rt.id) && st.IsStrongUnscheduled != 2 && h >= 0 && h < len(rt.master.threads) {
			rt.master.threads[h].pending.push(t)
		} else {
			t.status.Store(clickatomic.Status{HomeThreadID: st.HomeThreadID})
		}
	}
}

// osYield stands in for the historical select/epoll/schedule() call:
// the one point in the loop the thread may block. A short fixed sleep
// is sufficient here since this core has no file-descriptor readiness
// model of its own.
func (rt *RouterThread) osYield() {
	time.Sleep(time.Microsecond * 50)
}
