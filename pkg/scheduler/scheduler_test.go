package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunnable struct {
	fires atomic.Int64
}

func (c *countingRunnable) RunTask() bool {
	c.fires.Add(1)
	return true
}

func TestStrideFairness(t *testing.T) {
	master := NewMaster(1, true)
	master.Start()
	defer master.Stop()

	r1, r2, r3 := &countingRunnable{}, &countingRunnable{}, &countingRunnable{}
	t1 := NewTask(r1, 0)
	t1.SetTickets(1)
	t2 := NewTask(r2, 0)
	t2.SetTickets(2)
	t3 := NewTask(r3, 0)
	t3.SetTickets(4)

	master.schedule(t1)
	master.schedule(t2)
	master.schedule(t3)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		total := r1.fires.Load() + r2.fires.Load() + r3.fires.Load()
		if total >= 7000 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	total := r1.fires.Load() + r2.fires.Load() + r3.fires.Load()
	require.GreaterOrEqual(t, total, int64(7000))

	// Tickets (1, 2, 4) over ~7000 firings should land near the
	// proportional split (1000, 2000, 4000).
	ratio1 := float64(r1.fires.Load()) / float64(total)
	ratio2 := float64(r2.fires.Load()) / float64(total)
	ratio3 := float64(r3.fires.Load()) / float64(total)
	assert.InDelta(t, 1.0/7.0, ratio1, 0.02)
	assert.InDelta(t, 2.0/7.0, ratio2, 0.02)
	assert.InDelta(t, 4.0/7.0, ratio3, 0.02)
}

func TestCrossThreadMigration(t *testing.T) {
	master := NewMaster(2, true)
	master.Start()
	defer master.Stop()

	r := &countingRunnable{}
	task := NewTask(r, 0)
	master.schedule(task)

	require.Eventually(t, func() bool {
		return task.HomeThreadID() == 0 && task.IsScheduled()
	}, time.Second, time.Millisecond)

	task.MoveThread(1)

	require.Eventually(t, func() bool {
		return task.HomeThreadID() == 1
	}, time.Second, time.Millisecond)

	// Once migration settles, the task must sit in thread 1's heap
	// exactly once and never remain duplicated in thread 0's.
	require.Eventually(t, func() bool {
		master.mu.RLock()
		defer master.mu.RUnlock()
		return taskPresentOnce(master.threads[1], task) && !taskPresentOnce(master.threads[0], task)
	}, 2*time.Second, time.Millisecond)
}

func taskPresentOnce(rt *RouterThread, t *Task) bool {
	count := 0
	for _, item := range rt.heap.items {
		if item == t {
			count++
		}
	}
	return count == 1
}

func TestTaskFireBumpsPass(t *testing.T) {
	r := &countingRunnable{}
	task := NewTask(r, 0)
	task.SetTickets(10)
	before := task.Pass()
	task.fire(0)
	assert.Greater(t, task.Pass(), before)
}

func TestStrongUnscheduleDropsFromHeap(t *testing.T) {
	master := NewMaster(1, true)
	master.Start()
	defer master.Stop()

	r := &countingRunnable{}
	task := NewTask(r, 0)
	master.schedule(task)

	require.Eventually(t, func() bool {
		master.mu.RLock()
		defer master.mu.RUnlock()
		return master.threads[0].heap.Len() > 0
	}, time.Second, time.Millisecond)

	task.StrongUnschedule()

	require.Eventually(t, func() bool {
		master.mu.RLock()
		defer master.mu.RUnlock()
		return master.threads[0].heap.Len() == 0
	}, time.Second, time.Millisecond)
}

func TestRequestStopEventuallyStopsLoop(t *testing.T) {
	master := NewMaster(1, true)
	master.Start()

	master.RequestStop()

	done := make(chan struct{})
	go func() {
		master.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("master did not stop after RequestStop")
	}
}

type alwaysVeto struct {
	calls atomic.Int64
}

func (v *alwaysVeto) VetoStop() bool {
	v.calls.Add(1)
	return v.calls.Load() <= 3
}

func TestStopVetoDelaysStop(t *testing.T) {
	master := NewMaster(1, true)
	v := &alwaysVeto{}
	master.AddVeto(v)
	master.AdjustRuncount(-1) // drop runcount to StopRuncount
	master.Start()

	done := make(chan struct{})
	go func() {
		master.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("master did not stop after veto exhausted")
	}
	require.Greater(t, v.calls.Load(), int64(3))
}
