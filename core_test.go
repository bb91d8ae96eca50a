package corestore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/corestore/model"
)

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("twice", func(t *testing.T) {
		s := newTestStorage(t)
		c := s.Get(testKey(1))

		created, err := c.Create(ctx, CreateOptions{Key: []byte("pk")})
		require.NoError(t, err)
		assert.True(t, created)
		first, ok := c.Pointer()
		require.True(t, ok)

		created, err = c.Create(ctx, CreateOptions{Key: []byte("pk")})
		require.NoError(t, err)
		assert.False(t, created)
		second, _ := c.Pointer()
		assert.Equal(t, first, second)

		// A fresh handle sees the same pointers and does not allocate.
		other := s.Get(testKey(1))
		created, err = other.Create(ctx, CreateOptions{Key: []byte("pk")})
		require.NoError(t, err)
		assert.False(t, created)
		third, _ := other.Pointer()
		assert.Equal(t, first, third)

		info, ok, err := s.Info(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.StorageInfo{Free: 1, Total: 1}, info)
	})

	t.Run("allocates monotonically", func(t *testing.T) {
		s := newTestStorage(t)
		for i := byte(0); i < 5; i++ {
			c := createCore(t, s, testKey(i))
			ptr, _ := c.Pointer()
			assert.Equal(t, model.CorePointer{Core: uint64(i), Data: uint64(i)}, ptr)
		}
	})

	t.Run("writes initial records", func(t *testing.T) {
		s := newTestStorage(t)
		c := s.Get(testKey(1))

		head := model.CoreHead{Fork: 0, Length: 10, ByteLength: 100, Signature: []byte("sig")}
		created, err := c.Create(ctx, CreateOptions{
			Key:           []byte("pk"),
			Manifest:      []byte("manifest"),
			KeyPair:       &model.KeyPair{Seed: []byte("seed")},
			EncryptionKey: []byte("secret"),
			Head:          &head,
			Dependency:    &model.DataDependency{DataPointer: 7, Length: 3},
		})
		require.NoError(t, err)
		require.True(t, created)

		info, ok, err := s.Get(testKey(1)).Open(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, &model.CoreAuth{Key: []byte("pk"), Manifest: []byte("manifest")}, info.Auth)
		assert.Equal(t, &model.KeyPair{Seed: []byte("seed")}, info.KeyPair)
		assert.Equal(t, []byte("secret"), info.EncryptionKey)
		assert.Equal(t, &head, info.Head)

		di, ok, err := c.DataInfo(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint64(0), di.Version)

		dep, ok, err := c.Dependency(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, model.DataDependency{DataPointer: 7, Length: 3}, dep)
	})

	t.Run("adopts discovery key from options", func(t *testing.T) {
		s := newTestStorage(t)
		dk := testKey(4)

		c := s.Default()
		created, err := c.Create(ctx, CreateOptions{DiscoveryKey: &dk, Key: []byte("pk")})
		require.NoError(t, err)
		assert.True(t, created)

		got, ok := c.DiscoveryKey()
		assert.True(t, ok)
		assert.Equal(t, dk, got)
	})

	t.Run("default handle opens the existing default", func(t *testing.T) {
		s := newTestStorage(t)
		first := createCore(t, s, testKey(1))
		want, _ := first.Pointer()

		dk := testKey(2)
		c := s.Default()
		created, err := c.Create(ctx, CreateOptions{DiscoveryKey: &dk, Key: []byte("pk")})
		require.NoError(t, err)
		assert.False(t, created)

		got, ok := c.DiscoveryKey()
		require.True(t, ok)
		assert.Equal(t, testKey(1), got)
		ptr, _ := c.Pointer()
		assert.Equal(t, want, ptr)

		info, _, err := s.Info(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.StorageInfo{Free: 1, Total: 1}, info)
	})

	t.Run("bound handle ignores options key", func(t *testing.T) {
		s := newTestStorage(t)
		c := createCore(t, s, testKey(1))

		dk := testKey(2)
		created, err := c.Create(ctx, CreateOptions{DiscoveryKey: &dk, Key: []byte("pk")})
		require.NoError(t, err)
		assert.False(t, created)

		_, ok, err := s.Pointer(ctx, testKey(2))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	const n = 16

	var wg sync.WaitGroup
	cores := make([]*Core, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		cores[i] = s.Get(testKey(byte(i)))
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cores[i].Create(ctx, CreateOptions{Key: []byte("pk")})
		}(i)
	}
	wg.Wait()

	coreSeen := map[uint64]bool{}
	dataSeen := map[uint64]bool{}
	for i, c := range cores {
		require.NoError(t, errs[i])
		ptr, ok := c.Pointer()
		require.True(t, ok)
		assert.False(t, coreSeen[ptr.Core], "core pointer %d reused", ptr.Core)
		assert.False(t, dataSeen[ptr.Data], "data pointer %d reused", ptr.Data)
		coreSeen[ptr.Core] = true
		dataSeen[ptr.Data] = true
	}

	info, ok, err := s.Info(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.StorageInfo{Free: n, Total: n}, info)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		core func(s *Storage) *Core
		opts CreateOptions
		err  error
	}{
		{
			name: "missing key",
			core: func(s *Storage) *Core { return s.Get(testKey(1)) },
			opts: CreateOptions{},
			err:  ErrMissingKey,
		},
		{
			name: "unsupported version",
			core: func(s *Storage) *Core { return s.Get(testKey(1)) },
			opts: CreateOptions{Key: []byte("pk"), Version: 1},
			err:  ErrUnsupportedVersion,
		},
		{
			name: "discovery key mismatch",
			core: func(s *Storage) *Core { return s.Get(testKey(1)) },
			opts: CreateOptions{Key: []byte("pk"), DiscoveryKey: func() *model.DiscoveryKey { dk := testKey(2); return &dk }()},
			err:  ErrDiscoveryKeyMismatch,
		},
		{
			name: "no discovery key",
			core: func(s *Storage) *Core { return s.Default() },
			opts: CreateOptions{Key: []byte("pk")},
			err:  ErrMissingDiscoveryKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStorage(t)
			c := tt.core(s)

			created, err := c.Create(ctx, tt.opts)
			require.ErrorIs(t, err, tt.err)
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.False(t, created)
			assert.False(t, c.Bound())

			_, ok, err := s.Info(ctx)
			require.NoError(t, err)
			assert.False(t, ok, "nothing may be persisted")
		})
	}
}

func TestCreateCommitFailure(t *testing.T) {
	ctx := context.Background()
	s, f := newFaultyStorage(t)
	boom := errors.New("disk full")

	f.FailCommits(boom)

	c := s.Get(testKey(1))
	created, err := c.Create(ctx, CreateOptions{Key: []byte("pk")})
	require.ErrorIs(t, err, boom)
	assert.False(t, created)
	assert.False(t, c.Bound())

	_, ok, err := s.Info(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	f.FailCommits(nil)

	created, err = c.Create(ctx, CreateOptions{Key: []byte("pk")})
	require.NoError(t, err)
	assert.True(t, created)

	ptr, _ := c.Pointer()
	assert.Equal(t, model.CorePointer{}, ptr)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	t.Run("missing", func(t *testing.T) {
		c := s.Get(testKey(1))
		info, ok, err := c.Open(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, info)
		assert.False(t, c.Bound())

		_, _, err = c.Head(ctx)
		require.ErrorIs(t, err, ErrUnbound)
	})

	t.Run("default with empty store", func(t *testing.T) {
		_, ok, err := s.Default().Open(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	createCore(t, s, testKey(1))
	createCore(t, s, testKey(2))

	t.Run("existing", func(t *testing.T) {
		c := s.Get(testKey(2))
		info, ok, err := c.Open(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.NotNil(t, info.Auth)
		assert.Nil(t, info.Head)
		assert.Nil(t, info.KeyPair)
		assert.Nil(t, info.EncryptionKey)

		ptr, _ := c.Pointer()
		assert.Equal(t, model.CorePointer{Core: 1, Data: 1}, ptr)
	})

	t.Run("default resolves to first core", func(t *testing.T) {
		c := s.Default()
		_, ok, err := c.Open(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		dk, ok := c.DiscoveryKey()
		assert.True(t, ok)
		assert.Equal(t, testKey(1), dk)
	})
}

func TestCoreClose(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	c := createCore(t, s, testKey(1))

	require.NoError(t, c.Close())
	assert.False(t, c.Bound())

	_, _, err := c.Head(ctx)
	require.ErrorIs(t, err, ErrClosed)

	_, _, err = c.Open(ctx)
	require.ErrorIs(t, err, ErrClosed)

	// Other handles are unaffected.
	_, ok, err := s.Get(testKey(1)).Open(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCoreInfoSingleSnapshot(t *testing.T) {
	ctx := context.Background()
	s, f := newFaultyStorage(t)
	c := createCore(t, s, testKey(1))

	before := f.Snapshots()
	_, err := c.CoreInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, f.Snapshots())
}

func TestPointLookups(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	c := createCore(t, s, testKey(1))

	node := model.TreeNode{Index: 5, Size: 100, Hash: hash(0xaa)}
	head := model.CoreHead{Fork: 2, Length: 3, ByteLength: 300, Signature: []byte("sig")}

	writeBatch(t, c, func(b *WriteBatch) {
		require.NoError(t, b.PutTreeNode(node))
		require.NoError(t, b.PutBlock(1, []byte("b1")))
		require.NoError(t, b.PutBitfieldPage(0, []byte{0xff, 0x01}))
		require.NoError(t, b.PutUserData("name", []byte("value")))
		require.NoError(t, b.SetHead(head))
		require.NoError(t, b.SetHints(model.DataHints{ContiguousLength: 2}))
	})

	t.Run("tree node round trip", func(t *testing.T) {
		got, ok, err := c.TreeNode(ctx, 5, true)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, node, got)
	})

	t.Run("tree node miss", func(t *testing.T) {
		_, ok, err := c.TreeNode(ctx, 6, false)
		require.NoError(t, err)
		assert.False(t, ok)

		_, _, err = c.TreeNode(ctx, 6, true)
		require.ErrorIs(t, err, ErrNotFound)

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, uint64(6), nf.Index)
		assert.Equal(t, "tree node", nf.Kind)
	})

	t.Run("block", func(t *testing.T) {
		got, ok, err := c.Block(ctx, 1, true)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("b1"), got)

		_, _, err = c.Block(ctx, 2, true)
		require.ErrorIs(t, err, ErrNotFound)

		_, ok, err = c.Block(ctx, 2, false)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("existence", func(t *testing.T) {
		has, err := c.HasBlock(ctx, 1)
		require.NoError(t, err)
		assert.True(t, has)

		has, err = c.HasBlock(ctx, 2)
		require.NoError(t, err)
		assert.False(t, has)

		has, err = c.HasTreeNode(ctx, 5)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("records", func(t *testing.T) {
		page, ok, err := c.BitfieldPage(ctx, 0)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte{0xff, 0x01}, page)

		v, ok, err := c.UserData(ctx, "name")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("value"), v)

		gotHead, ok, err := c.Head(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, head, gotHead)

		hints, ok, err := c.Hints(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint64(2), hints.ContiguousLength)
	})
}

func TestCoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	a := createCore(t, s, testKey(1))
	b := createCore(t, s, testKey(2))

	writeBatch(t, a, func(wb *WriteBatch) {
		for i := uint64(0); i < 10; i++ {
			require.NoError(t, wb.PutBlock(i, []byte("a")))
		}
	})

	for _, err := range b.BlockStream(ctx) {
		require.NoError(t, err)
		t.Fatal("block leaked into another core")
	}

	_, ok, err := b.Block(ctx, 0, false)
	require.NoError(t, err)
	assert.False(t, ok)
}
