package config_test

import (
	"testing"

	"github.com/cuemby/clickcore/pkg/config"
	_ "github.com/cuemby/clickcore/pkg/elements"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/cuemby/clickcore/pkg/router"
	"github.com/stretchr/testify/require"
)

func TestParseTextualPipeline(t *testing.T) {
	src := `
		src :: Source();
		q :: Queue(1024);
		d :: Discard();

		src -> q;
		q -> d;
		require(package, test-fixture);
	`

	r := router.New()
	eh := errh.NewSilentHandler()
	err := config.ParseTextual(src, "pipeline.click", r, config.Default, eh)
	require.NoError(t, err)
	require.Equal(t, 0, eh.Count(errh.LevelError))

	reqs := r.Requirements()
	require.Len(t, reqs, 1)
	require.Equal(t, "package", reqs[0].Kind)
	require.Equal(t, "test-fixture", reqs[0].Value)
}

func TestParseTextualUnknownClass(t *testing.T) {
	src := `bogus :: NoSuchClass();`

	r := router.New()
	eh := errh.NewSilentHandler()
	err := config.ParseTextual(src, "bad.click", r, config.Default, eh)
	require.NoError(t, err) // parse errors are reported through eh, not returned
	require.Equal(t, 1, eh.Count(errh.LevelError))
}

func TestParseTextualUnknownConnectionEndpoint(t *testing.T) {
	src := `
		src :: Source();
		src -> missing;
	`

	r := router.New()
	eh := errh.NewSilentHandler()
	err := config.ParseTextual(src, "bad.click", r, config.Default, eh)
	require.NoError(t, err)
	require.Equal(t, 1, eh.Count(errh.LevelError))
}

func TestParseTextualBracketedPorts(t *testing.T) {
	src := `
		a :: Tee(2);
		b :: Discard();
		c :: Discard();

		a [0] -> [0] b;
		a [1] -> [0] c;
	`

	r := router.New()
	eh := errh.NewSilentHandler()
	err := config.ParseTextual(src, "fanout.click", r, config.Default, eh)
	require.NoError(t, err)
	require.Equal(t, 0, eh.Count(errh.LevelError))
}
