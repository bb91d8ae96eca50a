package backup

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/corestore"
	"github.com/hupe1980/corestore/internal/hash"
)

// Data blob layout, all integers little-endian:
//
//	[magic u32][version u32]
//	frame*: [codec u8][raw u32][stored u32][crc32c u32][stored bytes]
//
// The checksum covers the uncompressed payload. A payload is a sequence of
// [klen uvarint][key][vlen uvarint][value] in key order.
const (
	Magic         uint32 = 0x50425343 // "CSBP"
	FormatVersion uint32 = 1

	fileHeaderSize  = 8
	frameHeaderSize = 13

	// DefaultFrameSize is the target uncompressed payload size of a frame.
	DefaultFrameSize = 1 << 20
	// MaxFrameSize bounds the configurable frame size.
	MaxFrameSize = 64 << 20
)

var (
	// ErrCorrupt is returned when a backup fails validation. It matches
	// corestore.ErrCorrupt.
	ErrCorrupt = fmt.Errorf("%w: backup", corestore.ErrCorrupt)
	// ErrUnsupportedFormat is returned for data blobs of an unknown version.
	ErrUnsupportedFormat = errors.New("backup: unsupported format")
	// ErrNoBackup is returned when the store has no committed backup.
	ErrNoBackup = errors.New("backup: no committed backup")
)

// Compression selects the frame codec.
type Compression uint8

const (
	// CompressionNone stores payloads as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd.
	CompressionZSTD Compression = 2
)

// String returns the stable name used in manifests and on the command line.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("backup: unknown compression %q", s)
	}
}

func appendFileHeader(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, Magic)
	return binary.LittleEndian.AppendUint32(dst, FormatVersion)
}

func readFileHeader(r io.Reader) error {
	var b [fileHeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return fmt.Errorf("%w: file header: %v", ErrCorrupt, err)
	}
	if binary.LittleEndian.Uint32(b[0:]) != Magic {
		return fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint32(b[4:]); v != FormatVersion {
		return fmt.Errorf("%w: version %d", ErrUnsupportedFormat, v)
	}
	return nil
}

type frameHeader struct {
	codec  Compression
	raw    uint32
	stored uint32
	crc    uint32
}

func (h frameHeader) append(dst []byte) []byte {
	dst = append(dst, byte(h.codec))
	dst = binary.LittleEndian.AppendUint32(dst, h.raw)
	dst = binary.LittleEndian.AppendUint32(dst, h.stored)
	return binary.LittleEndian.AppendUint32(dst, h.crc)
}

func parseFrameHeader(b []byte) (frameHeader, error) {
	if len(b) < frameHeaderSize {
		return frameHeader{}, fmt.Errorf("%w: short frame header", ErrCorrupt)
	}
	h := frameHeader{
		codec:  Compression(b[0]),
		raw:    binary.LittleEndian.Uint32(b[1:]),
		stored: binary.LittleEndian.Uint32(b[5:]),
		crc:    binary.LittleEndian.Uint32(b[9:]),
	}
	if h.codec > CompressionZSTD {
		return frameHeader{}, fmt.Errorf("%w: unknown frame codec %d", ErrCorrupt, h.codec)
	}
	if h.codec == CompressionNone && h.raw != h.stored {
		return frameHeader{}, fmt.Errorf("%w: uncompressed frame size mismatch", ErrCorrupt)
	}
	return h, nil
}

// encodeFrame compresses raw and returns the header and stored bytes.
func encodeFrame(raw []byte, c Compression) ([]byte, error) {
	if uint64(len(raw)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("backup: frame of %d bytes too large", len(raw))
	}
	stored, codec, err := compress(raw, c)
	if err != nil {
		return nil, err
	}
	h := frameHeader{
		codec:  codec,
		raw:    uint32(len(raw)),
		stored: uint32(len(stored)),
		crc:    hash.CRC32C(raw),
	}
	out := make([]byte, 0, frameHeaderSize+len(stored))
	out = h.append(out)
	return append(out, stored...), nil
}

// decodeFrame decompresses stored and verifies the payload checksum.
func decodeFrame(h frameHeader, stored []byte) ([]byte, error) {
	raw, err := decompress(h.codec, stored, int(h.raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if hash.CRC32C(raw) != h.crc {
		return nil, fmt.Errorf("%w: frame checksum mismatch", ErrCorrupt)
	}
	return raw, nil
}

func entrySize(key, value []byte) int {
	return uvarintLen(uint64(len(key))) + len(key) + uvarintLen(uint64(len(value))) + len(value)
}

func appendEntry(dst, key, value []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(key)))
	dst = append(dst, key...)
	dst = binary.AppendUvarint(dst, uint64(len(value)))
	return append(dst, value...)
}

// decodeEntries calls fn for every entry of payload. key and value alias
// payload.
func decodeEntries(payload []byte, fn func(key, value []byte) error) (int, error) {
	n := 0
	for len(payload) > 0 {
		key, rest, err := readBytes(payload)
		if err != nil {
			return n, err
		}
		value, rest, err := readBytes(rest)
		if err != nil {
			return n, err
		}
		if err := fn(key, value); err != nil {
			return n, err
		}
		payload = rest
		n++
	}
	return n, nil
}

func readBytes(b []byte) ([]byte, []byte, error) {
	l, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, nil, fmt.Errorf("%w: bad length prefix", ErrCorrupt)
	}
	b = b[n:]
	if l > uint64(len(b)) {
		return nil, nil, fmt.Errorf("%w: entry overruns frame", ErrCorrupt)
	}
	return b[:l:l], b[l:], nil
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
