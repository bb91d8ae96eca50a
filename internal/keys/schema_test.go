package keys

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/corestore/internal/arena"
)

func TestDataKeysStayInRange(t *testing.T) {
	for _, ptr := range []uint64{0, 1, 0xfb, 0xfc, 1 << 40} {
		for typ := DataInfo; typ <= DataUserData; typ++ {
			start, end := DataRange(ptr, typ)
			for _, idx := range []uint64{0, 1, 0xfc, 1 << 33, ^uint64(0)} {
				k := AppendDataIndex(nil, ptr, typ, idx)
				assert.True(t, bytes.Compare(start, k) <= 0)
				assert.Negative(t, bytes.Compare(k, end))
			}
		}
	}
}

func TestDataRangesDoNotOverlap(t *testing.T) {
	type rng struct{ start, end []byte }
	var all []rng
	for _, ptr := range []uint64{0, 1, 2, 0xfb, 0xfc, 0x10000} {
		for typ := DataInfo; typ <= DataUserData; typ++ {
			s, e := DataRange(ptr, typ)
			all = append(all, rng{s, e})
		}
	}
	for i := range all {
		for j := range all {
			if i == j {
				continue
			}
			disjoint := bytes.Compare(all[i].end, all[j].start) <= 0 || bytes.Compare(all[j].end, all[i].start) <= 0
			assert.True(t, disjoint, "ranges %d and %d overlap", i, j)
		}
	}
}

func TestTopRange(t *testing.T) {
	start, end := TopRange(DiscoveryKeys)
	k := AppendDiscoveryKey(nil, bytes.Repeat([]byte{0xff}, DiscoveryKeySize))
	assert.True(t, bytes.Compare(start, k) <= 0)
	assert.Negative(t, bytes.Compare(k, end))

	other := AppendCore(nil, 0, CoreManifest)
	assert.True(t, bytes.Compare(other, end) >= 0)
}

func TestEncoder(t *testing.T) {
	a := arena.New(arena.DefaultSize)
	enc := NewEncoder(a)

	t.Run("matches pure builders", func(t *testing.T) {
		cases := []struct {
			span arena.Span
			want []byte
		}{
			{enc.Top(StorageInfo), []byte{0}},
			{enc.Top(DefaultKey), []byte{5}},
			{enc.Core(3, CoreHead), []byte{3, 3, 3}},
			{enc.Data(1, DataInfo), []byte{4, 1, 0}},
			{enc.DataIndex(1, DataTree, 300), AppendDataIndex(nil, 1, DataTree, 300)},
			{enc.DataString(2, DataUserData, "name"), AppendDataString(nil, 2, DataUserData, "name")},
			{enc.DataEnd(2, DataBlock), []byte{4, 2, 6, End}},
		}
		for _, c := range cases {
			got, err := c.span.Bytes()
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		}
	})

	t.Run("discovery key", func(t *testing.T) {
		dk := bytes.Repeat([]byte{0xab}, DiscoveryKeySize)
		got, err := enc.DiscoveryKey(dk).Bytes()
		require.NoError(t, err)
		assert.Equal(t, byte(DiscoveryKeys), got[0])
		assert.Equal(t, dk, got[1:])
	})

	t.Run("long string key", func(t *testing.T) {
		key := string(bytes.Repeat([]byte("k"), 2*arena.DefaultSize))
		got, err := enc.DataString(0, DataUserData, key).Bytes()
		require.NoError(t, err)
		assert.Equal(t, AppendDataString(nil, 0, DataUserData, key), got)
	})

	t.Run("stale after reset", func(t *testing.T) {
		s := enc.DataIndex(1, DataBlock, 9)
		a.Reset()
		_, err := s.Bytes()
		require.ErrorIs(t, err, arena.ErrStaleSpan)
	})
}
