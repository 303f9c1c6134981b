package clickatomic

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinlockMutualExclusion(t *testing.T) {
	var lock Spinlock
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				lock.Lock()
				counter++
				lock.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 64*1000, counter)
}

func TestSpinlockUnlockUnlockedPanics(t *testing.T) {
	var lock Spinlock
	assert.Panics(t, func() { lock.Unlock() })
}

func TestPackedWordRoundTrip(t *testing.T) {
	var p PackedWord
	p.Init(3)
	got := p.Load()
	assert.Equal(t, int32(3), got.HomeThreadID)
	assert.False(t, got.IsScheduled)
	assert.Equal(t, uint8(0), got.IsStrongUnscheduled)

	ok := p.CompareAndSwap(got, Status{HomeThreadID: 3, IsScheduled: true})
	require.True(t, ok)
	got = p.Load()
	assert.True(t, got.IsScheduled)

	ok = p.CompareAndSwap(Status{HomeThreadID: 99}, Status{HomeThreadID: 1})
	assert.False(t, ok, "CAS against a stale expected value must fail")
}
