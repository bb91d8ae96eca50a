package backup

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/corestore"
)

func testPayload(n int) []byte {
	var buf []byte
	for i := range n {
		key := fmt.Appendf(nil, "key-%06d", i)
		value := bytes.Repeat([]byte{byte(i)}, i%64)
		buf = appendEntry(buf, key, value)
	}
	return buf
}

func fillRandom(b []byte) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := range b {
		b[i] = byte(r.Uint32())
	}
}

func TestFileHeader(t *testing.T) {
	h := appendFileHeader(nil)
	require.Len(t, h, fileHeaderSize)
	require.NoError(t, readFileHeader(bytes.NewReader(h)))

	t.Run("BadMagic", func(t *testing.T) {
		bad := append([]byte(nil), h...)
		bad[0] ^= 0xff
		assert.ErrorIs(t, readFileHeader(bytes.NewReader(bad)), ErrCorrupt)
	})

	t.Run("FutureVersion", func(t *testing.T) {
		bad := append([]byte(nil), h...)
		bad[4] = 9
		assert.ErrorIs(t, readFileHeader(bytes.NewReader(bad)), ErrUnsupportedFormat)
	})

	t.Run("Short", func(t *testing.T) {
		assert.ErrorIs(t, readFileHeader(bytes.NewReader(h[:3])), ErrCorrupt)
	})
}

func TestFrame_RoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"Entries":        testPayload(500),
		"Incompressible": func() []byte { b := make([]byte, 4096); fillRandom(b); return b }(),
		"Single":         appendEntry(nil, []byte("k"), []byte("v")),
	}

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		for name, raw := range payloads {
			t.Run(c.String()+"/"+name, func(t *testing.T) {
				enc, err := encodeFrame(raw, c)
				require.NoError(t, err)

				h, err := parseFrameHeader(enc)
				require.NoError(t, err)
				assert.Equal(t, uint32(len(raw)), h.raw)
				assert.Len(t, enc, frameHeaderSize+int(h.stored))

				got, err := decodeFrame(h, enc[frameHeaderSize:])
				require.NoError(t, err)
				assert.Equal(t, raw, got)
			})
		}
	}
}

func TestFrame_FallsBackToNone(t *testing.T) {
	raw := make([]byte, 1024)
	fillRandom(raw)

	enc, err := encodeFrame(raw, CompressionZSTD)
	require.NoError(t, err)

	h, err := parseFrameHeader(enc)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, h.codec)
}

func TestFrame_Compresses(t *testing.T) {
	raw := bytes.Repeat([]byte("hypercore"), 1000)

	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		enc, err := encodeFrame(raw, c)
		require.NoError(t, err)

		h, err := parseFrameHeader(enc)
		require.NoError(t, err)
		assert.Equal(t, c, h.codec)
		assert.Less(t, int(h.stored), len(raw)/2)
	}
}

func TestFrame_Corruption(t *testing.T) {
	raw := testPayload(100)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			enc, err := encodeFrame(raw, c)
			require.NoError(t, err)
			h, err := parseFrameHeader(enc)
			require.NoError(t, err)

			stored := append([]byte(nil), enc[frameHeaderSize:]...)
			stored[len(stored)/2] ^= 0x55

			_, err = decodeFrame(h, stored)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorrupt)
			assert.ErrorIs(t, err, corestore.ErrCorrupt)
		})
	}

	t.Run("UnknownCodec", func(t *testing.T) {
		enc, err := encodeFrame(raw, CompressionNone)
		require.NoError(t, err)
		enc[0] = 7
		_, err = parseFrameHeader(enc)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("NoneSizeMismatch", func(t *testing.T) {
		h := frameHeader{codec: CompressionNone, raw: 10, stored: 9}
		_, err := parseFrameHeader(h.append(nil))
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestDecodeEntries(t *testing.T) {
	payload := appendEntry(nil, []byte("a"), []byte("1"))
	payload = appendEntry(payload, []byte("b"), nil)
	payload = appendEntry(payload, []byte("c"), bytes.Repeat([]byte("x"), 300))

	var keys []string
	n, err := decodeEntries(payload, func(k, v []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	assert.Equal(t, len(payload), entrySize([]byte("a"), []byte("1"))+
		entrySize([]byte("b"), nil)+
		entrySize([]byte("c"), bytes.Repeat([]byte("x"), 300)))

	t.Run("Truncated", func(t *testing.T) {
		_, err := decodeEntries(payload[:len(payload)-1], func(k, v []byte) error { return nil })
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("CallbackError", func(t *testing.T) {
		stop := fmt.Errorf("stop")
		n, err := decodeEntries(payload, func(k, v []byte) error {
			if string(k) == "b" {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, n)
	})
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCompression("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, CompressionZSTD, got)

	_, err = ParseCompression("snappy")
	assert.Error(t, err)
}

func TestUvarintLen(t *testing.T) {
	for _, v := range []uint64{0, 127, 128, 16383, 16384, 1 << 40} {
		assert.Equal(t, len(binary.AppendUvarint(nil, v)), uvarintLen(v), "v=%d", v)
	}
}
