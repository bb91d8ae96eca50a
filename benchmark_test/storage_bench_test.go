package benchmark_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/corestore"
	"github.com/hupe1980/corestore/kv/kvtest"
	"github.com/hupe1980/corestore/model"
	"github.com/hupe1980/corestore/testutil"
)

func newStorage(b *testing.B, disk bool) *corestore.Storage {
	b.Helper()
	if disk {
		s, err := corestore.Open(b.TempDir())
		require.NoError(b, err)
		b.Cleanup(func() { _ = s.Close() })
		return s
	}
	s := corestore.New(kvtest.NewMem(b))
	b.Cleanup(func() { _ = s.Close() })
	return s
}

func BenchmarkWriteBatch(b *testing.B) {
	for _, tc := range []struct {
		name  string
		disk  bool
		batch int
		size  int
	}{
		{"Mem/1x1KB", false, 1, 1 << 10},
		{"Mem/64x1KB", false, 64, 1 << 10},
		{"Pebble/1x1KB", true, 1, 1 << 10},
		{"Pebble/64x1KB", true, 64, 1 << 10},
		{"Pebble/16x64KB", true, 16, 64 << 10},
	} {
		b.Run(tc.name, func(b *testing.B) {
			ctx := context.Background()
			s := newStorage(b, tc.disk)
			rng := testutil.NewRNG(1)

			c := s.Get(rng.DiscoveryKey())
			_, err := c.Create(ctx, corestore.CreateOptions{Key: rng.Bytes(32)})
			require.NoError(b, err)

			payload := rng.Bytes(tc.size)
			b.SetBytes(int64(tc.batch * tc.size))
			b.ReportAllocs()
			b.ResetTimer()

			var next uint64
			for b.Loop() {
				wb, err := c.CreateWriteBatch()
				if err != nil {
					b.Fatal(err)
				}
				for range tc.batch {
					if err := wb.PutBlock(next, payload); err != nil {
						b.Fatal(err)
					}
					next++
				}
				if err := wb.Flush(ctx); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkReadBatch(b *testing.B) {
	const blocks = 1024

	for _, tc := range []struct {
		name  string
		batch int
	}{
		{"1", 1},
		{"16", 16},
		{"128", 128},
	} {
		b.Run(tc.name, func(b *testing.B) {
			ctx := context.Background()
			s := newStorage(b, true)
			rng := testutil.NewRNG(2)

			dks, err := testutil.Populate(ctx, s, rng, testutil.Fixture{Cores: 1, Blocks: blocks, BlockSize: 1 << 10})
			require.NoError(b, err)
			c := s.Get(dks[0])

			b.ReportAllocs()
			b.ResetTimer()

			for b.Loop() {
				rb, err := c.CreateReadBatch()
				if err != nil {
					b.Fatal(err)
				}
				pending := make([]*corestore.Pending[[]byte], tc.batch)
				for i := range pending {
					pending[i] = rb.GetBlock(uint64(rng.Intn(blocks)), true)
				}
				if err := rb.Flush(ctx); err != nil {
					b.Fatal(err)
				}
				for _, p := range pending {
					if _, _, err := p.Get(); err != nil {
						b.Fatal(err)
					}
				}
			}
		})
	}
}

func BenchmarkOpenCore(b *testing.B) {
	ctx := context.Background()
	s := newStorage(b, true)

	dks, err := testutil.Populate(ctx, s, testutil.NewRNG(3), testutil.Fixture{Cores: 256, Blocks: 1})
	require.NoError(b, err)

	b.Run("Cached", func(b *testing.B) {
		b.ReportAllocs()
		i := 0
		for b.Loop() {
			if _, ok, err := s.Get(dks[i%len(dks)]).Open(ctx); err != nil || !ok {
				b.Fatal(ok, err)
			}
			i++
		}
	})

	b.Run("Miss", func(b *testing.B) {
		rng := testutil.NewRNG(4)
		b.ReportAllocs()
		for b.Loop() {
			if _, ok, err := s.Get(rng.DiscoveryKey()).Open(ctx); err != nil || ok {
				b.Fatal(ok, err)
			}
		}
	})
}

func BenchmarkStream(b *testing.B) {
	ctx := context.Background()
	s := newStorage(b, true)

	dks, err := testutil.Populate(ctx, s, testutil.NewRNG(5), testutil.Fixture{Cores: 1, Blocks: 4096, BlockSize: 256})
	require.NoError(b, err)
	c := s.Get(dks[0])

	b.Run("TreeNodes", func(b *testing.B) {
		b.ReportAllocs()
		for b.Loop() {
			n := 0
			for _, err := range c.TreeNodeStream(ctx) {
				if err != nil {
					b.Fatal(err)
				}
				n++
			}
			if n != 4096 {
				b.Fatalf("streamed %d nodes", n)
			}
		}
	})

	b.Run("BlocksReverseLimit", func(b *testing.B) {
		b.ReportAllocs()
		for b.Loop() {
			for _, err := range c.BlockStream(ctx, corestore.Reverse(), corestore.Limit(64)) {
				if err != nil {
					b.Fatal(err)
				}
			}
		}
	})

	b.Run("BlockSet", func(b *testing.B) {
		b.ReportAllocs()
		for b.Loop() {
			set, err := c.BlockSet(ctx)
			if err != nil {
				b.Fatal(err)
			}
			if set.GetCardinality() != 4096 {
				b.Fatalf("cardinality %d", set.GetCardinality())
			}
		}
	})

	b.Run("PeekLast", func(b *testing.B) {
		b.ReportAllocs()
		for b.Loop() {
			var node model.TreeNode
			var ok bool
			if node, ok, err = c.PeekLastTreeNode(ctx); err != nil || !ok {
				b.Fatal(ok, err)
			}
			_ = node
		}
	})
}
