package main

import (
	"testing"

	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/cuemby/clickcore/pkg/scheduler"
	"github.com/stretchr/testify/require"
)

func TestIsArchive(t *testing.T) {
	require.True(t, isArchive([]byte("!<arch>\nrest")))
	require.False(t, isArchive([]byte("src :: Source();")))
	require.False(t, isArchive([]byte("short")))
}

func TestIsYAML(t *testing.T) {
	require.True(t, isYAML("pipeline.yaml"))
	require.True(t, isYAML("pipeline.yml"))
	require.False(t, isYAML("pipeline.click"))
}

func TestBuildRouterTextual(t *testing.T) {
	src := []byte("src :: Source();\nq :: Queue(1024);\nd :: Discard();\nsrc -> q;\nq -> d;\n")
	eh := errh.NewSilentHandler()

	r, err := buildRouter(src, "pipeline.click", eh)
	require.NoError(t, err)
	require.Equal(t, 3, r.NumElements())
	require.Equal(t, 0, eh.Count(errh.LevelError))
}

func TestBuildRouterYAML(t *testing.T) {
	src := []byte(`
elements:
  - name: src
    class: Source
  - name: q
    class: Queue
    config: ["1024"]
  - name: d
    class: Discard

connections:
  - from: src
    to: q
  - from: q
    to: d
`)
	eh := errh.NewSilentHandler()

	r, err := buildRouter(src, "pipeline.yaml", eh)
	require.NoError(t, err)
	require.Equal(t, 3, r.NumElements())
}

func TestScheduleRunnablesSkipsNonRunnable(t *testing.T) {
	src := []byte("src :: Source();\nq :: Queue(1024);\nd :: Discard();\nsrc -> q;\nq -> d;\n")
	eh := errh.NewSilentHandler()

	r, err := buildRouter(src, "pipeline.click", eh)
	require.NoError(t, err)

	master := scheduler.NewMaster(2, true)
	scheduleRunnables(r, master, 2)

	scheduled := 0
	for i := 0; i < r.NumElements(); i++ {
		if _, ok := r.Element(element.EIndex(i)).(element.Runnable); ok {
			scheduled++
		}
	}
	require.GreaterOrEqual(t, scheduled, 1)

	// Before Start, every scheduled Task waits on a pending queue: one per
	// Runnable element, none for the rest.
	pending := 0
	for _, rt := range master.Threads() {
		pending += rt.PendingDepth()
	}
	require.Equal(t, scheduled, pending)
	require.Less(t, pending, r.NumElements())
}
