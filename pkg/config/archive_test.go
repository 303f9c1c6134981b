package config_test

import (
	"bytes"
	"testing"

	"github.com/cuemby/clickcore/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestArchiveRoundTrip(t *testing.T) {
	members := []config.Member{
		{Name: "config", Data: []byte("src :: Source();\n")},
		{Name: "notes", Data: []byte("aux member with odd length")},
	}

	var buf bytes.Buffer
	require.NoError(t, config.WriteArchive(&buf, members))

	ar, err := config.ReadArchive(&buf)
	require.NoError(t, err)

	cfg, dig, ok := ar.Config()
	require.True(t, ok)
	require.Equal(t, members[0].Data, cfg.Data)
	require.Equal(t, config.Digest(members[0].Data), dig)

	aux := ar.Auxiliary()
	require.Len(t, aux, 1)
	require.Equal(t, "notes", aux[0].Name)
	require.Equal(t, members[1].Data, aux[0].Data)
}

func TestReadArchiveBadMagic(t *testing.T) {
	_, err := config.ReadArchive(bytes.NewReader([]byte("not an archive")))
	require.Error(t, err)
}

func TestDigestIsStableAndContentAddressed(t *testing.T) {
	a := config.Digest([]byte("same bytes"))
	b := config.Digest([]byte("same bytes"))
	c := config.Digest([]byte("different bytes"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
