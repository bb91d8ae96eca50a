package arena

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStaleSpan is returned when a span is read after its arena was reset.
var ErrStaleSpan = errors.New("arena: span used after reset")

const (
	// DefaultSize is the size of a fresh arena buffer (64 KiB).
	DefaultSize = 64 * 1024

	// MinFree is the worst-case size of a single key or fixed-width value
	// encoding. Encodes that need more get a dedicated buffer.
	MinFree = 64
)

// Stats tracks arena usage.
type Stats struct {
	Generation   uint32 // Current generation (bumped by Reset)
	Allocs       uint64 // Total spans handed out
	BytesUsed    uint64 // Bytes handed out since the last Reset
	Replacements uint64 // Buffers replaced because room ran out
}

// Span is a view into an arena buffer tagged with the arena generation it
// was minted in.
type Span struct {
	arena *Arena
	gen   uint32
	b     []byte
}

// Bytes returns the spanned bytes.
// It returns ErrStaleSpan if the owning arena was reset after the span was created.
func (s Span) Bytes() ([]byte, error) {
	if s.arena != nil && s.gen != s.arena.gen {
		return nil, ErrStaleSpan
	}
	return s.b, nil
}

// Valid reports whether the span can still be read.
func (s Span) Valid() bool {
	return s.arena == nil || s.gen == s.arena.gen
}

// Len returns the length of the span.
func (s Span) Len() int { return len(s.b) }

// Copy returns a copy of the spanned bytes that outlives the arena.
func (s Span) Copy() ([]byte, error) {
	b, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Owned wraps a slice that does not live in any arena.
// Owned spans never go stale.
func Owned(b []byte) Span {
	return Span{b: b}
}

// Arena is a bump allocator. The zero value is not usable; use New or Get.
type Arena struct {
	size  int
	buf   []byte
	off   int
	gen   uint32
	stats Stats
}

// New creates an arena whose buffers are size bytes long.
// If size is smaller than MinFree, DefaultSize is used.
func New(size int) *Arena {
	if size < MinFree {
		size = DefaultSize
	}
	return &Arena{
		size: size,
		buf:  make([]byte, size),
		gen:  1,
	}
}

// ensure makes sure at least n bytes are free at the cursor, replacing the
// buffer if needed. Requests larger than the arena size get their own buffer.
func (a *Arena) ensure(n int) {
	if n < MinFree {
		n = MinFree
	}
	if len(a.buf)-a.off >= n {
		return
	}
	size := a.size
	if n > size {
		size = n
	}
	a.buf = make([]byte, size)
	a.off = 0
	a.stats.Replacements++
}

// Alloc reserves n bytes and returns them as a span.
func (a *Arena) Alloc(n int) Span {
	a.ensure(n)
	start := a.off
	a.off += n
	a.stats.Allocs++
	a.stats.BytesUsed += uint64(n)
	return Span{arena: a, gen: a.gen, b: a.buf[start:a.off:a.off]}
}

// Encode reserves up to max bytes, lets fn append into them and returns what
// fn wrote. If fn writes more than max bytes the result is moved to the heap
// and returned as an owned span; the arena cursor is not advanced.
func (a *Arena) Encode(max int, fn func(dst []byte) []byte) Span {
	a.ensure(max)
	start := a.off
	dst := a.buf[start:start:len(a.buf)]
	if len(a.buf)-start > max {
		dst = a.buf[start:start : start+max]
	}
	out := fn(dst)
	if len(out) > cap(dst) || (len(out) > 0 && &out[0] != &a.buf[start]) {
		return Owned(out)
	}
	a.off += len(out)
	a.stats.Allocs++
	a.stats.BytesUsed += uint64(len(out))
	return Span{arena: a, gen: a.gen, b: out[:len(out):len(out)]}
}

// Copy places a copy of b in the arena.
func (a *Arena) Copy(b []byte) Span {
	s := a.Alloc(len(b))
	copy(s.b, b)
	return s
}

// Reset rewinds the cursor over the current buffer and invalidates every span
// handed out so far.
func (a *Arena) Reset() {
	a.off = 0
	a.gen++
	if a.gen == 0 {
		a.gen = 1
	}
	a.stats.BytesUsed = 0
}

// Generation returns the current generation.
func (a *Arena) Generation() uint32 { return a.gen }

// Stats returns a snapshot of the arena counters.
func (a *Arena) Stats() Stats {
	s := a.stats
	s.Generation = a.gen
	return s
}

func (a *Arena) String() string {
	return fmt.Sprintf("Arena{gen: %d, used: %d/%d, allocs: %d, replacements: %d}",
		a.gen, a.off, len(a.buf), a.stats.Allocs, a.stats.Replacements)
}

var pool = sync.Pool{
	New: func() any { return New(DefaultSize) },
}

// Get returns a pooled arena.
func Get() *Arena {
	return pool.Get().(*Arena)
}

// Put resets a and returns it to the pool. Spans minted by a become stale.
func Put(a *Arena) {
	if a == nil {
		return
	}
	a.Reset()
	pool.Put(a)
}
