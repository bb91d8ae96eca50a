package corestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/corestore/kv/kvtest"
	"github.com/hupe1980/corestore/model"
)

func newTestStorage(t *testing.T, opts ...Option) *Storage {
	t.Helper()

	s := New(kvtest.NewMem(t), opts...)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func newFaultyStorage(t *testing.T, opts ...Option) (*Storage, *kvtest.FaultyEngine) {
	t.Helper()

	f := kvtest.NewFaulty(kvtest.NewMem(t))
	s := New(f, opts...)
	t.Cleanup(func() { _ = s.Close() })

	return s, f
}

func testKey(b byte) model.DiscoveryKey {
	var dk model.DiscoveryKey
	for i := range dk {
		dk[i] = b
	}
	return dk
}

func createCore(t *testing.T, s *Storage, dk model.DiscoveryKey) *Core {
	t.Helper()

	c := s.Get(dk)
	created, err := c.Create(context.Background(), CreateOptions{Key: []byte("key-" + dk.String()[:8])})
	require.NoError(t, err)
	require.True(t, created)

	return c
}

func writeBatch(t *testing.T, c *Core, fn func(b *WriteBatch)) {
	t.Helper()

	b, err := c.CreateWriteBatch()
	require.NoError(t, err)

	fn(b)
	require.NoError(t, b.Flush(context.Background()))
}

func hash(b byte) [model.HashSize]byte {
	var h [model.HashSize]byte
	for i := range h {
		h[i] = b
	}
	return h
}
