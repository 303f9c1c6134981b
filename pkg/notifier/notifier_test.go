package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicSignalActive(t *testing.T) {
	arena := NewArena()
	sig := arena.NewSignal()
	assert.False(t, sig.Active())
	sig.SetActive(true)
	assert.True(t, sig.Active())
	sig.SetActive(false)
	assert.False(t, sig.Active())
}

func TestIdleAndBusyAreConstant(t *testing.T) {
	assert.False(t, Idle().Active())
	assert.True(t, Busy().Active())
}

func TestCombineIdentityAndAbsorption(t *testing.T) {
	arena := NewArena()
	sig := arena.NewSignal()

	assert.Equal(t, sig, Combine(Idle(), sig))
	assert.True(t, Combine(Busy(), sig).Active())
}

func TestCombineThreeSignals(t *testing.T) {
	// Scenario 5 from the testable-properties scenarios: derive S from
	// N1, N2, N3; toggling components toggles S.
	arena := NewArena()
	n1 := arena.NewSignal()
	n2 := arena.NewSignal()
	n3 := arena.NewSignal()

	s := Combine(Combine(n1, n2), n3)
	assert.False(t, s.Active())

	n2.SetActive(true)
	assert.True(t, s.Active())

	n2.SetActive(false)
	assert.False(t, s.Active())

	n1.SetActive(true)
	n3.SetActive(true)
	assert.True(t, s.Active())

	n1.SetActive(false)
	assert.True(t, s.Active(), "clearing only n1 should keep s active via n3")
}

type fakeListener struct {
	woken int
}

func (f *fakeListener) Reschedule() { f.woken++ }

func TestActiveNotifierWakeFansOut(t *testing.T) {
	arena := NewArena()
	sig := arena.NewSignal()
	n := NewActiveNotifier(sig)

	l1, l2 := &fakeListener{}, &fakeListener{}
	n.AddListener(l1)
	n.AddListener(l2)

	called := false
	n.AddActivateCallback(func(userdata any) { called = true }, nil)

	n.Wake()
	assert.Equal(t, 1, l1.woken)
	assert.Equal(t, 1, l2.woken)
	assert.True(t, called)
	assert.True(t, n.Signal().Active())
}

func TestActiveNotifierRemoveListener(t *testing.T) {
	arena := NewArena()
	n := NewActiveNotifier(arena.NewSignal())
	l := &fakeListener{}
	n.AddListener(l)
	n.RemoveListener(l)
	n.Wake()
	assert.Equal(t, 0, l.woken)
}

func TestArenaAllocatesAcrossBlocks(t *testing.T) {
	arena := NewArena()
	var last Signal
	for i := 0; i < 5000; i++ {
		last = arena.NewSignal()
	}
	require.NotNil(t, last)
	last.SetActive(true)
	assert.True(t, last.Active())
}
