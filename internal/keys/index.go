package keys

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrShortBuffer is returned when a key ends in the middle of a field.
	ErrShortBuffer = errors.New("keys: short buffer")

	// ErrNonCanonical is returned for integers not encoded in their shortest form.
	ErrNonCanonical = errors.New("keys: non-canonical integer encoding")

	// ErrInvalidTag is returned when an integer starts with the reserved 0xff byte.
	ErrInvalidTag = errors.New("keys: invalid integer tag")
)

const (
	tag16 = 0xfc
	tag32 = 0xfd
	tag64 = 0xfe

	// End is the byte that sorts after every encoded integer.
	End = 0xff

	// MaxUintSize is the longest integer encoding.
	MaxUintSize = 9
)

// UintSize returns the encoded length of n.
func UintSize(n uint64) int {
	switch {
	case n <= 0xfb:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// AppendUint appends the order-preserving encoding of n to dst.
func AppendUint(dst []byte, n uint64) []byte {
	switch {
	case n <= 0xfb:
		return append(dst, byte(n))
	case n <= 0xffff:
		return binary.BigEndian.AppendUint16(append(dst, tag16), uint16(n))
	case n <= 0xffffffff:
		return binary.BigEndian.AppendUint32(append(dst, tag32), uint32(n))
	default:
		return binary.BigEndian.AppendUint64(append(dst, tag64), n)
	}
}

// DecodeUint decodes an integer from the front of b and returns it with the
// number of bytes consumed.
func DecodeUint(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrShortBuffer
	}

	var (
		n    uint64
		size int
		min  uint64
	)

	switch b[0] {
	case tag16:
		size, min = 3, 0xfc
		if len(b) < size {
			return 0, 0, ErrShortBuffer
		}
		n = uint64(binary.BigEndian.Uint16(b[1:]))
	case tag32:
		size, min = 5, 0x10000
		if len(b) < size {
			return 0, 0, ErrShortBuffer
		}
		n = uint64(binary.BigEndian.Uint32(b[1:]))
	case tag64:
		size, min = 9, 0x100000000
		if len(b) < size {
			return 0, 0, ErrShortBuffer
		}
		n = binary.BigEndian.Uint64(b[1:])
	case End:
		return 0, 0, ErrInvalidTag
	default:
		return uint64(b[0]), 1, nil
	}

	if n < min {
		return 0, 0, ErrNonCanonical
	}
	return n, size, nil
}

// StringSize returns the encoded length of s.
func StringSize(s string) int {
	return UintSize(uint64(len(s))) + len(s)
}

// AppendString appends the length-prefixed encoding of s to dst.
func AppendString(dst []byte, s string) []byte {
	dst = AppendUint(dst, uint64(len(s)))
	return append(dst, s...)
}

// DecodeString decodes a length-prefixed string from the front of b.
func DecodeString(b []byte) (string, int, error) {
	n, size, err := DecodeUint(b)
	if err != nil {
		return "", 0, err
	}
	if uint64(len(b)-size) < n {
		return "", 0, ErrShortBuffer
	}
	end := size + int(n)
	return string(b[size:end]), end, nil
}
