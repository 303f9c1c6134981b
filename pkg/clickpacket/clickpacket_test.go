package clickpacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndData(t *testing.T) {
	p := New([]byte("hello"), 16, 16)
	assert.Equal(t, []byte("hello"), p.Data())
	assert.Equal(t, 5, p.Length())
	assert.Equal(t, 16, p.Headroom())
	assert.False(t, p.Shared())
}

func TestCloneSharesDataIndependentAnnotation(t *testing.T) {
	p := New([]byte("payload"), 8, 8)
	p.Annotation()[0] = 0xAA

	clone := p.Clone()
	require.True(t, p.Shared())
	require.True(t, clone.Shared())
	assert.Equal(t, p.Data(), clone.Data())

	clone.Annotation()[0] = 0xBB
	assert.Equal(t, byte(0xAA), p.Annotation()[0])
	assert.Equal(t, byte(0xBB), clone.Annotation()[0])

	p.Kill()
	clone.Kill()
}

func TestUniqueifyCopiesWhenShared(t *testing.T) {
	p := New([]byte("abc"), 4, 4)
	clone := p.Clone()

	unique := clone.Uniqueify()
	assert.False(t, unique.Shared())

	// Uniqueify released clone's reference to the original buffer, so p
	// now holds it alone (refcount 1) and unique has a fresh copy.
	unique.Data()[0] = 'X'
	assert.Equal(t, byte('a'), p.Data()[0], "uniqueify must not mutate the original")

	p.Kill()
	unique.Kill()
}

func TestUniqueifyIsNoopWhenExclusive(t *testing.T) {
	p := New([]byte("solo"), 0, 0)
	unique := p.Uniqueify()
	assert.Same(t, p, unique)
	unique.Kill()
}

func TestPushPullHeader(t *testing.T) {
	p := New([]byte("body"), 14, 0)
	p.PushHeader(14)
	assert.Equal(t, 18, p.Length())
	p.PullHeader(14)
	assert.Equal(t, []byte("body"), p.Data())
}

func TestPushHeaderPanicsPastHeadroom(t *testing.T) {
	p := New([]byte("x"), 2, 0)
	assert.Panics(t, func() { p.PushHeader(3) })
}

func TestHeaderOffsetsDefaultUnset(t *testing.T) {
	p := New([]byte("raw"), 0, 0)
	assert.Equal(t, offsetUnset, p.EtherOffset())
	assert.Equal(t, offsetUnset, p.NetworkOffset())
	assert.Equal(t, offsetUnset, p.TransportOffset())
}
