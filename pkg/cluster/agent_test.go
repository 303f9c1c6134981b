package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeartbeaterThreadsNilWithoutProvider(t *testing.T) {
	h := &Heartbeater{}
	assert.Nil(t, h.threads())
}

func TestHeartbeaterThreadsNilOnEmptyStats(t *testing.T) {
	h := &Heartbeater{}
	h.SetThreadStats(func() []ThreadStats { return nil })
	assert.Nil(t, h.threads())
}

func TestHeartbeaterThreadsConvertsStats(t *testing.T) {
	h := &Heartbeater{}
	h.SetThreadStats(func() []ThreadStats {
		return []ThreadStats{
			{ThreadID: 0, Scheduled: 3, Firings: 100},
			{ThreadID: 1, Scheduled: 5, Firings: 250},
		}
	})

	got := h.threads()
	if assert.Len(t, got, 2) {
		assert.EqualValues(t, 0, got[0].ThreadID)
		assert.EqualValues(t, 3, got[0].Scheduled)
		assert.EqualValues(t, 100, got[0].Firings)
		assert.EqualValues(t, 1, got[1].ThreadID)
		assert.EqualValues(t, 5, got[1].Scheduled)
		assert.EqualValues(t, 250, got[1].Firings)
	}
}
