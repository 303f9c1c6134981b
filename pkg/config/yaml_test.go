package config_test

import (
	"testing"

	"github.com/cuemby/clickcore/pkg/config"
	_ "github.com/cuemby/clickcore/pkg/elements"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/cuemby/clickcore/pkg/router"
	"github.com/stretchr/testify/require"
)

func TestParseYAMLPipeline(t *testing.T) {
	src := []byte(`
elements:
  - name: src
    class: Source
  - name: q
    class: Queue
    config: ["512"]
  - name: d
    class: Discard

connections:
  - from: src
    to: q
  - from: q
    to: d

require:
  - kind: package
    value: test-fixture
`)

	r := router.New()
	eh := errh.NewSilentHandler()
	err := config.ParseYAML(src, "pipeline.yaml", r, config.Default, eh)
	require.NoError(t, err)
	require.Equal(t, 0, eh.Count(errh.LevelError))

	reqs := r.Requirements()
	require.Len(t, reqs, 1)
	require.Equal(t, "test-fixture", reqs[0].Value)
}

func TestParseYAMLUnknownConnectionEndpoint(t *testing.T) {
	src := []byte(`
elements:
  - name: src
    class: Source

connections:
  - from: src
    to: missing
`)

	r := router.New()
	eh := errh.NewSilentHandler()
	err := config.ParseYAML(src, "bad.yaml", r, config.Default, eh)
	require.NoError(t, err)
	require.Equal(t, 1, eh.Count(errh.LevelError))
}
