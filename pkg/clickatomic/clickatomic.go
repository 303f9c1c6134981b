// Package clickatomic collects the small lock-free and packed-word
// primitives the scheduler and notifier mesh build on: a spinlock for the
// rare sections that genuinely need mutual exclusion without blocking a
// driver thread on the Go scheduler, and a packed status word used by
// pkg/scheduler's Task to hold home_thread_id/is_scheduled/
// is_strong_unscheduled in a single word that can be swapped with one CAS.
package clickatomic

import (
	"runtime"
	"sync/atomic"
)

// Spinlock is a test-and-test-and-set spinlock with a bounded busy-wait
// before yielding the OS thread. It suits critical sections held for only
// a handful of instructions — short enough that blocking in the Go
// runtime's mutex would cost more than spinning. Neither the scheduler's
// pending queue (a lock-free CAS list) nor the notifier arena (which takes
// no lock) uses it.
type Spinlock struct {
	held atomic.Bool
}

// Lock spins until the lock is acquired, yielding the OS thread every 64
// failed attempts so a blocked goroutine doesn't starve the real owner on a
// GOMAXPROCS=1 build.
func (s *Spinlock) Lock() {
	spins := 0
	for !s.TryLock() {
		spins++
		if spins&63 == 0 {
			runtime.Gosched()
		}
	}
}

// TryLock attempts to acquire the lock without blocking.
func (s *Spinlock) TryLock() bool {
	return s.held.CompareAndSwap(false, true)
}

// Unlock releases the lock. Unlocking an already-unlocked Spinlock is a
// programmer error and panics, matching Go's own fail-fast posture on
// misused sync.Mutex values.
func (s *Spinlock) Unlock() {
	if !s.held.CompareAndSwap(true, false) {
		panic("clickatomic: Unlock of unlocked Spinlock")
	}
}

// PackedWord is a single atomic word split into three bitfields, mirroring
// the original Click Task::_status layout: a home-thread id, a scheduled
// flag, and a three-valued (0, 1, 2) "strong unscheduled" state that
// Task.StrongUnschedule sets to 2 so the home thread's driver loop drops
// the task instead of firing it.
//
// Bit layout (low to high): homeThreadBits for HomeThreadID, 1 bit for
// IsScheduled, 2 bits for IsStrongUnscheduled.
type PackedWord struct {
	word atomic.Uint64
}

const (
	homeThreadBits = 32
	homeThreadMask = (uint64(1) << homeThreadBits) - 1
	scheduledShift = homeThreadBits
	scheduledMask  = uint64(1) << scheduledShift
	strongShift    = homeThreadBits + 1
	strongMask     = uint64(0x3) << strongShift
)

// Status is the decoded form of a PackedWord.
type Status struct {
	HomeThreadID         int32
	IsScheduled          bool
	IsStrongUnscheduled  uint8 // 0 = normal, 1 = unscheduling, 2 = blocked
}

func pack(s Status) uint64 {
	w := uint64(uint32(s.HomeThreadID)) & homeThreadMask
	if s.IsScheduled {
		w |= scheduledMask
	}
	w |= (uint64(s.IsStrongUnscheduled) << strongShift) & strongMask
	return w
}

func unpack(w uint64) Status {
	return Status{
		HomeThreadID:        int32(w & homeThreadMask),
		IsScheduled:         w&scheduledMask != 0,
		IsStrongUnscheduled: uint8((w & strongMask) >> strongShift),
	}
}

// Init sets the initial status word, establishing the task's home thread.
func (p *PackedWord) Init(homeThreadID int32) {
	p.word.Store(pack(Status{HomeThreadID: homeThreadID}))
}

// Load returns the current decoded status.
func (p *PackedWord) Load() Status {
	return unpack(p.word.Load())
}

// CompareAndSwap atomically replaces old with new, returning whether the
// swap took place. Callers loop on Load/CompareAndSwap to implement
// read-modify-write transitions, matching the original's click_compare_swap
// usage in request_stop and move_thread.
func (p *PackedWord) CompareAndSwap(old, new Status) bool {
	return p.word.CompareAndSwap(pack(old), pack(new))
}

// Store unconditionally replaces the status word, without a CAS. Besides
// setup, pkg/scheduler uses it to reset the word of a task its driver
// loop drops and in Task.MoveThread before a task has a Master; a
// concurrent CompareAndSwap on the same word can be overwritten.
func (p *PackedWord) Store(s Status) {
	p.word.Store(pack(s))
}
