package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortCountAllows(t *testing.T) {
	fixed := Fixed(2)
	assert.True(t, fixed.Allows(2))
	assert.False(t, fixed.Allows(1))
	assert.False(t, fixed.Allows(3))

	unbounded := Range(1, -1)
	assert.True(t, unbounded.Allows(1))
	assert.True(t, unbounded.Allows(1000))
	assert.False(t, unbounded.Allows(0))
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "push", Push.String())
	assert.Equal(t, "pull", Pull.String())
	assert.Equal(t, "agnostic", Agnostic.String())
}

type minimalElement struct {
	BaseElement
}

func (minimalElement) ClassName() string { return "Minimal" }

func TestBaseElementDefaults(t *testing.T) {
	var e Element = minimalElement{}
	in, out := e.PortCount()
	assert.Equal(t, Fixed(1), in)
	assert.Equal(t, Fixed(1), out)

	ins, outs := e.Processing()
	assert.Equal(t, []Direction{Agnostic}, ins)
	assert.Equal(t, []Direction{Agnostic}, outs)

	assert.Equal(t, "", e.FlowCode())
	assert.NoError(t, e.Configure(nil, nil))
	assert.NoError(t, e.Initialize(RootEIndex, nil, nil))
}
