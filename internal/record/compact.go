package record

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrShortBuffer is returned when a value ends in the middle of a field.
	ErrShortBuffer = errors.New("record: short buffer")

	// ErrTrailingBytes is returned when a value has bytes left after decoding.
	ErrTrailingBytes = errors.New("record: trailing bytes")
)

// MaxUintSize is the longest uint encoding.
const MaxUintSize = 9

// UintSize returns the encoded length of n.
func UintSize(n uint64) int {
	switch {
	case n <= 0xfc:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// AppendUint appends n in compact form.
func AppendUint(dst []byte, n uint64) []byte {
	switch {
	case n <= 0xfc:
		return append(dst, byte(n))
	case n <= 0xffff:
		return binary.LittleEndian.AppendUint16(append(dst, 0xfd), uint16(n))
	case n <= 0xffffffff:
		return binary.LittleEndian.AppendUint32(append(dst, 0xfe), uint32(n))
	default:
		return binary.LittleEndian.AppendUint64(append(dst, 0xff), n)
	}
}

// BufferSize returns the encoded length of b.
func BufferSize(b []byte) int {
	return UintSize(uint64(len(b))) + len(b)
}

// AppendBuffer appends a length-prefixed byte slice.
func AppendBuffer(dst, b []byte) []byte {
	return append(AppendUint(dst, uint64(len(b))), b...)
}

// state is a read cursor over an encoded value.
type state struct {
	b   []byte
	off int
	err error
}

func (s *state) uint() uint64 {
	if s.err != nil {
		return 0
	}
	if s.off >= len(s.b) {
		s.err = ErrShortBuffer
		return 0
	}

	tag := s.b[s.off]
	s.off++

	var width int
	switch tag {
	case 0xfd:
		width = 2
	case 0xfe:
		width = 4
	case 0xff:
		width = 8
	default:
		return uint64(tag)
	}

	if len(s.b)-s.off < width {
		s.err = ErrShortBuffer
		return 0
	}

	p := s.b[s.off : s.off+width]
	s.off += width

	switch width {
	case 2:
		return uint64(binary.LittleEndian.Uint16(p))
	case 4:
		return uint64(binary.LittleEndian.Uint32(p))
	default:
		return binary.LittleEndian.Uint64(p)
	}
}

// fixed returns the next n bytes without copying.
func (s *state) fixed(n int) []byte {
	if s.err != nil {
		return nil
	}
	if n < 0 || len(s.b)-s.off < n {
		s.err = ErrShortBuffer
		return nil
	}

	p := s.b[s.off : s.off+n]
	s.off += n

	return p
}

// buffer returns a copy of the next length-prefixed byte slice.
func (s *state) buffer() []byte {
	n := s.uint()
	if s.err != nil {
		return nil
	}
	if n > uint64(len(s.b)-s.off) {
		s.err = ErrShortBuffer
		return nil
	}

	p := s.fixed(int(n))
	if p == nil {
		return nil
	}

	return append([]byte{}, p...)
}

// done reports the first decoding error or trailing garbage.
func (s *state) done() error {
	if s.err != nil {
		return s.err
	}
	if s.off != len(s.b) {
		return ErrTrailingBytes
	}
	return nil
}
