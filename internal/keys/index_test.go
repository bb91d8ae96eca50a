package keys

import (
	"bytes"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var boundaries = []uint64{
	0, 1, 0x7f, 0xfa, 0xfb, 0xfc, 0xfd, 0xff, 0x100, 0xfffe, 0xffff,
	0x10000, 0xffffff, 0xfffffffe, 0xffffffff, 0x100000000,
	1 << 48, math.MaxUint64 - 1, math.MaxUint64,
}

func TestUintRoundTrip(t *testing.T) {
	for _, n := range boundaries {
		b := AppendUint(nil, n)
		assert.Equal(t, UintSize(n), len(b), "size of %d", n)

		got, size, err := DecodeUint(b)
		require.NoError(t, err)
		assert.Equal(t, n, got)
		assert.Equal(t, len(b), size)
	}
}

func TestUintOrdering(t *testing.T) {
	t.Run("boundaries", func(t *testing.T) {
		for i := 1; i < len(boundaries); i++ {
			a := AppendUint(nil, boundaries[i-1])
			b := AppendUint(nil, boundaries[i])
			assert.Negative(t, bytes.Compare(a, b), "%d < %d", boundaries[i-1], boundaries[i])
		}
	})

	t.Run("random", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		nums := make([]uint64, 2000)
		for i := range nums {
			// Spread values over every encoding width.
			nums[i] = rng.Uint64() >> uint(rng.Intn(64))
		}
		encoded := make([][]byte, len(nums))
		for i, n := range nums {
			encoded[i] = AppendUint(nil, n)
		}

		sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
		sort.Slice(encoded, func(i, j int) bool { return bytes.Compare(encoded[i], encoded[j]) < 0 })

		for i, n := range nums {
			got, _, err := DecodeUint(encoded[i])
			require.NoError(t, err)
			assert.Equal(t, n, got)
		}
	})

	t.Run("end sorts last", func(t *testing.T) {
		assert.Negative(t, bytes.Compare(AppendUint(nil, math.MaxUint64), []byte{End}))
	})
}

func TestDecodeUintErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		err  error
	}{
		{"empty", nil, ErrShortBuffer},
		{"short u16", []byte{tag16, 0x01}, ErrShortBuffer},
		{"short u32", []byte{tag32, 0, 0, 1}, ErrShortBuffer},
		{"short u64", []byte{tag64, 0, 0, 0, 0, 0, 0, 1}, ErrShortBuffer},
		{"reserved tag", []byte{End}, ErrInvalidTag},
		{"u16 below min", []byte{tag16, 0x00, 0xfb}, ErrNonCanonical},
		{"u32 below min", []byte{tag32, 0, 0, 0xff, 0xff}, ErrNonCanonical},
		{"u64 below min", []byte{tag64, 0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}, ErrNonCanonical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeUint(tt.in)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDecodeUintTrailing(t *testing.T) {
	b := AppendUint(nil, 300)
	b = AppendUint(b, 7)

	n, size, err := DecodeUint(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), n)

	n, _, err = DecodeUint(b[size:])
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
}

func TestString(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		for _, s := range []string{"", "a", "hello", string(make([]byte, 300))} {
			b := AppendString(nil, s)
			assert.Equal(t, StringSize(s), len(b))

			got, size, err := DecodeString(b)
			require.NoError(t, err)
			assert.Equal(t, s, got)
			assert.Equal(t, len(b), size)
		}
	})

	t.Run("short", func(t *testing.T) {
		_, _, err := DecodeString([]byte{5, 'a', 'b'})
		require.ErrorIs(t, err, ErrShortBuffer)
	})

	t.Run("shortlex order", func(t *testing.T) {
		in := []string{"b", "aa", "a", "", "ab", "zzz"}
		encoded := make([][]byte, len(in))
		for i, s := range in {
			encoded[i] = AppendString(nil, s)
		}
		sort.Slice(encoded, func(i, j int) bool { return bytes.Compare(encoded[i], encoded[j]) < 0 })

		var got []string
		for _, b := range encoded {
			s, _, err := DecodeString(b)
			require.NoError(t, err)
			got = append(got, s)
		}
		assert.Equal(t, []string{"", "a", "b", "aa", "ab", "zzz"}, got)
	})
}
