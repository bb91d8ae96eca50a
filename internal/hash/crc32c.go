package hash

import (
	"hash/crc32"
	"io"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// UpdateCRC32C extends crc with data.
func UpdateCRC32C(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, castagnoli, data)
}

// Digest is a running CRC32C over a byte stream that also counts the bytes.
// The zero value is ready to use.
type Digest struct {
	sum uint32
	n   int64
}

// Write never fails.
func (d *Digest) Write(p []byte) (int, error) {
	d.sum = UpdateCRC32C(d.sum, p)
	d.n += int64(len(p))
	return len(p), nil
}

// Sum32 returns the checksum of everything written so far.
func (d *Digest) Sum32() uint32 { return d.sum }

// Len returns the number of bytes written so far.
func (d *Digest) Len() int64 { return d.n }

// Matches reports whether the stream had exactly size bytes and checksum sum.
func (d *Digest) Matches(size int64, sum uint32) bool {
	return d.n == size && d.sum == sum
}

// Writer forwards writes to an underlying writer and digests the bytes that
// were accepted.
type Writer struct {
	Digest
	w io.Writer
}

// NewWriter returns a Writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	_, _ = w.Digest.Write(p[:n])
	return n, err
}

// ReadFrom digests r to EOF using buf and returns the digest.
func ReadFrom(r io.Reader, buf []byte) (*Digest, error) {
	d := &Digest{}
	if _, err := io.CopyBuffer(d, r, buf); err != nil {
		return d, err
	}
	return d, nil
}
