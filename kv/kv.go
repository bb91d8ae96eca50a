// Package kv defines the ordered key-value engine contract corestore runs on.
//
// Keys sort byte-wise. Implementations copy every key and value handed to
// them, so callers may reuse their buffers as soon as a call returns.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned when an engine, snapshot or batch is used after Close.
var ErrClosed = errors.New("kv: closed")

// WriteMode selects the durability of a batch commit.
type WriteMode int

const (
	// Sync waits until the commit is durable.
	Sync WriteMode = iota
	// NoSync returns once the commit is applied in memory.
	NoSync
)

func (m WriteMode) String() string {
	switch m {
	case Sync:
		return "sync"
	case NoSync:
		return "nosync"
	default:
		return "unknown"
	}
}

// Range selects keys in [Lower, Upper). A nil bound is unbounded.
type Range struct {
	Lower   []byte
	Upper   []byte
	Reverse bool
	// Limit caps the number of entries yielded. Zero or negative means no cap.
	Limit int
}

// Entry is a key-value pair. The slices are owned by the caller.
type Entry struct {
	Key   []byte
	Value []byte
}

// Iterator walks a Range. Key and Value are only valid until the next call
// to Next.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Reader is the read side of an engine or snapshot.
type Reader interface {
	// Get returns a copy of the value stored under key.
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	NewIterator(ctx context.Context, r Range) (Iterator, error)
	// Peek returns the first entry of r, honoring r.Reverse.
	Peek(ctx context.Context, r Range) (Entry, bool, error)
}

// Snapshot is a consistent point-in-time view.
type Snapshot interface {
	Reader
	Close() error
}

// Batch buffers writes and applies them atomically on Commit.
type Batch interface {
	Set(key, value []byte) error
	Delete(key []byte) error
	// DeleteRange removes every key in [start, end).
	DeleteRange(start, end []byte) error
	// Len returns the number of buffered operations.
	Len() int
	Commit(ctx context.Context, mode WriteMode) error
	Close() error
}

// Engine is an ordered key-value store.
type Engine interface {
	Reader
	NewSnapshot(ctx context.Context) (Snapshot, error)
	NewBatch() Batch
	Close() error
}

// Collect drains it into owned entries and closes it.
func Collect(it Iterator) ([]Entry, error) {
	var out []Entry
	for it.Next() {
		out = append(out, Entry{
			Key:   append([]byte(nil), it.Key()...),
			Value: append([]byte(nil), it.Value()...),
		})
	}

	err := it.Err()
	if cerr := it.Close(); err == nil {
		err = cerr
	}

	return out, err
}
