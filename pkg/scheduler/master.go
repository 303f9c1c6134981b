package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/clickcore/pkg/clickatomic"
	"github.com/cuemby/clickcore/pkg/log"
)

// StopVeto is implemented by an element (a DriverManager analogue) that
// wants a chance to keep the driver running when runcount reaches
// StopRuncount: drivers that veto a stop may resume.
type StopVeto interface {
	// VetoStop returns true to keep the driver running despite the
	// runcount reaching zero.
	VetoStop() bool
}

// Master is the process-wide owner of one or more RouterThreads,
// arbitrating router lifecycle transitions and driver stop.
type Master struct {
	mu      sync.RWMutex
	threads []*RouterThread

	runcount atomic.Int64
	vetoes   []StopVeto

	stopRequested atomic.Bool
}

// NewMaster returns a Master with numThreads RouterThreads, none yet
// started. greedy, if true, disables the OS-yield blocking step on
// every thread (used by tests that want maximum throughput and don't
// care about CPU burn).
func NewMaster(numThreads int, greedy bool) *Master {
	m := &Master{}
	m.runcount.Store(1)
	for i := 0; i < numThreads; i++ {
		m.threads = append(m.threads, newRouterThread(int32(i), m, greedy))
	}
	return m
}

// Threads returns the Master's RouterThreads.
func (m *Master) Threads() []*RouterThread { return m.threads }

// NumThreads returns how many RouterThreads this Master owns.
func (m *Master) NumThreads() int { return len(m.threads) }

// Start launches every RouterThread's driver loop.
func (m *Master) Start() {
	log.WithComponent("scheduler").Info().Int("threads", len(m.threads)).Msg("starting master")
	for _, rt := range m.threads {
		rt.Start()
	}
}

// Stop requests every RouterThread to stop and waits for them to exit.
func (m *Master) Stop() {
	for _, rt := range m.threads {
		rt.Stop()
	}
}

// AddVeto registers a StopVeto consulted whenever the runcount reaches
// StopRuncount.
func (m *Master) AddVeto(v StopVeto) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vetoes = append(m.vetoes, v)
}

// AdjustRuncount adds delta to the Master's runcount. Reaching
// StopRuncount or below requests a stop (the // please_stop_driver decrements the router's runcount; this is the
// scheduler-level mirror consulted by the driver loop).
func (m *Master) AdjustRuncount(delta int64) int64 {
	return m.runcount.Add(delta)
}

func (m *Master) shouldStop() bool {
	return m.runcount.Load() <= StopRuncount || m.stopRequested.Load()
}

// confirmStop consults every registered veto; if any vetoes, the stop
// is declined and the driver loop continues.
func (m *Master) confirmStop() bool {
	m.mu.RLock()
	vetoes := append([]StopVeto(nil), m.vetoes...)
	m.mu.RUnlock()
	for _, v := range vetoes {
		if v.VetoStop() {
			return false
		}
	}
	return true
}

// RequestStop asks every thread's driver loop to stop at its next check,
// independent of runcount. It does not strong-unschedule any Task: tasks
// still in a thread's heap are left there, unfired, once the loop exits.
func (m *Master) RequestStop() {
	m.stopRequested.Store(true)
}

// Schedule makes t eligible to fire on its home thread, the entry
// point a caller outside this package uses to hand the Master a
// freshly constructed Task (Task.Reschedule/Task.Schedule reach the
// same place once a Task already knows its Master, which it doesn't
// until its first Schedule call).
func (m *Master) Schedule(t *Task) {
	m.schedule(t)
}

// schedule is Task.Reschedule's implementation: mark the task scheduled
// (skipping a redundant wake if it's already scheduled) and deposit it
// on its home thread's pending queue.
func (m *Master) schedule(t *Task) {
	for {
		old := t.status.Load()
		if old.IsScheduled {
			return
		}
		next := old
		next.IsScheduled = true
		if t.status.CompareAndSwap(old, next) {
			break
		}
	}
	t.master = m
	home := t.HomeThreadID()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(home) < 0 || int(home) >= len(m.threads) {
		return
	}
	m.threads[home].pending.push(t)
}

// moveThread implements Task.MoveThread: flip the status word's
// home_thread_id and deposit the task on the new home's pending queue.
// The old thread observes the mismatch next time it looks at the task
// (either still in its heap, via runBurst's ownership check, or on a
// pending entry meant for it) and drops it; a task it drops from its heap
// it deposits on the new home's pending queue again, since the new home
// skips an entry whose task is still in another heap.
func (m *Master) moveThread(t *Task, newHome int32) {
	for {
		old := t.status.Load()
		next := clickatomic.Status{
			HomeThreadID:        newHome,
			IsScheduled:         true,
			IsStrongUnscheduled: old.IsStrongUnscheduled,
		}
		if t.status.CompareAndSwap(old, next) {
			break
		}
	}
	t.master = m
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(newHome) < 0 || int(newHome) >= len(m.threads) {
		return
	}
	m.threads[newHome].pending.push(t)
}
