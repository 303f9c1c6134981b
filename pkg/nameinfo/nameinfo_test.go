package nameinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopePrecedence(t *testing.T) {
	db := New(16)
	db.Define(TypeIPPrefix, "", "LAN", "10.0.0.0/24")
	db.Define(TypeIPPrefix, "c", "LAN", "192.168.1.0/24")

	v, ok := db.Query(TypeIPPrefix, "c/d", "LAN")
	require.True(t, ok)
	assert.Equal(t, "192.168.1.0/24", v)

	v, ok = db.Query(TypeIPPrefix, "e", "LAN")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.0/24", v)
}

func TestRemoveUnshadows(t *testing.T) {
	db := New(16)
	db.Define(TypeIPPrefix, "", "LAN", "10.0.0.0/24")
	db.Define(TypeIPPrefix, "c", "LAN", "192.168.1.0/24")
	db.Remove(TypeIPPrefix, "c", "LAN")

	v, ok := db.Query(TypeIPPrefix, "c/d", "LAN")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.0/24", v)
}

func TestQueryMiss(t *testing.T) {
	db := New(16)
	_, ok := db.Query(TypeIPPrefix, "a/b", "NOPE")
	assert.False(t, ok)
}

func TestQueryCacheInvalidatedOnDefine(t *testing.T) {
	db := New(16)
	db.Define(TypeIPv4Address, "", "GW", "10.0.0.1")
	v, ok := db.Query(TypeIPv4Address, "x", "GW")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", v)

	db.Define(TypeIPv4Address, "", "GW", "10.0.0.2")
	v, ok = db.Query(TypeIPv4Address, "x", "GW")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2", v)
}
