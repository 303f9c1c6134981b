package handler

import (
	"testing"

	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWriteRoundTrip(t *testing.T) {
	p := NewPool()
	value := "10"
	reg := p.Registrar(element.EIndex(0))
	reg.AddReadHandler("capacity", Calm, func() (string, error) { return value, nil })
	reg.AddWriteHandler("capacity", Calm, func(v string, eh errh.Handler) error {
		value = v
		return nil
	})
	p.Freeze()

	got, err := p.CallRead(element.EIndex(0), "capacity")
	require.NoError(t, err)
	assert.Equal(t, "10", got)

	require.NoError(t, p.CallWrite(element.EIndex(0), "capacity", "20", nil))
	got, err = p.CallRead(element.EIndex(0), "capacity")
	require.NoError(t, err)
	assert.Equal(t, "20", got)
}

func TestHIndexStableAndMissing(t *testing.T) {
	p := NewPool()
	reg := p.Registrar(element.EIndex(1))
	reg.AddReadHandler("count", OpRead, func() (string, error) { return "0", nil })
	p.Freeze()

	idx := p.HIndex(element.EIndex(1), "count")
	assert.GreaterOrEqual(t, int(idx), 0)
	assert.Equal(t, idx, p.HIndex(element.EIndex(1), "count"))
	assert.Equal(t, missingHIndex, p.HIndex(element.EIndex(1), "nonexistent"))
}

func TestGlobalHandlers(t *testing.T) {
	p := NewPool()
	p.AddGlobalReadHandler("classes", OpRead, func() (string, error) { return "Source\nQueue\n", nil })
	p.Freeze()

	got, err := p.CallRead(element.RootEIndex, "classes")
	require.NoError(t, err)
	assert.Contains(t, got, "Source")
}

func TestCallWriteMissingReportsError(t *testing.T) {
	p := NewPool()
	p.Freeze()
	eh := errh.NewSilentHandler()
	err := p.CallWrite(element.EIndex(0), "nope", "x", eh)
	assert.Error(t, err)
	assert.Equal(t, 1, eh.Count(errh.LevelError))
}

func TestForElementPreservesOrder(t *testing.T) {
	p := NewPool()
	reg := p.Registrar(element.EIndex(2))
	reg.AddReadHandler("a", OpRead, func() (string, error) { return "", nil })
	reg.AddReadHandler("b", OpRead, func() (string, error) { return "", nil })
	assert.Equal(t, []string{"a", "b"}, p.ForElement(element.EIndex(2)))
}
