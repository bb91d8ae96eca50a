package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/corestore"
	"github.com/hupe1980/corestore/kv/kvtest"
)

func TestRNG_Deterministic(t *testing.T) {
	a, b := NewRNG(42), NewRNG(42)

	assert.Equal(t, a.DiscoveryKey(), b.DiscoveryKey())
	assert.Equal(t, a.Bytes(100), b.Bytes(100))
	assert.Equal(t, a.Uint64(), b.Uint64())
	assert.Equal(t, int64(42), a.Seed())

	first := a.Hash()
	a.Reset()
	a.DiscoveryKey()
	a.Bytes(100)
	a.Uint64()
	assert.Equal(t, first, a.Hash())
}

func TestRNG_Intn(t *testing.T) {
	r := NewRNG(1)
	for range 100 {
		n := r.Intn(10)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 10)
	}
}

func TestPopulate(t *testing.T) {
	ctx := context.Background()
	s := corestore.New(kvtest.NewMem(t))
	t.Cleanup(func() { _ = s.Close() })

	dks, err := Populate(ctx, s, NewRNG(7), Fixture{Cores: 3, Blocks: 10, BlockSize: 32, Compressible: true})
	require.NoError(t, err)
	require.Len(t, dks, 3)

	info, ok, err := s.Info(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), info.Total)

	c := s.Get(dks[1])
	head, ok, err := c.Head(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(10), head.Length)

	block, ok, err := c.Block(ctx, 9, true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, block, 32)
	assert.Equal(t, "core 1 block 9;", string(block[:15]))

	blocks, err := c.BlockSet(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), blocks.GetCardinality())

	value, ok, err := c.UserData(ctx, "fixture")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "core-1", string(value))
}
