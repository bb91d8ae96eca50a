// Package pebblekv implements kv.Engine on top of Pebble.
package pebblekv

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/hupe1980/corestore/kv"
)

// DB is a Pebble backed kv.Engine.
type DB struct {
	db     *pebble.DB
	closed atomic.Bool
}

var _ kv.Engine = (*DB)(nil)

// Open opens or creates the database in dir.
func Open(dir string, optFns ...Option) (*DB, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	po, cache := opts.pebble()
	defer cache.Unref()

	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, fmt.Errorf("pebblekv: open %q: %w", dir, err)
	}

	return &DB{db: db}, nil
}

// OpenMem opens an empty in-memory database.
func OpenMem(optFns ...Option) (*DB, error) {
	return Open("", append(optFns, WithInMemory())...)
}

// Get implements kv.Reader.
func (d *DB) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if d.closed.Load() {
		return nil, false, kv.ErrClosed
	}
	return get(ctx, d.db, key)
}

// NewIterator implements kv.Reader.
func (d *DB) NewIterator(ctx context.Context, r kv.Range) (kv.Iterator, error) {
	if d.closed.Load() {
		return nil, kv.ErrClosed
	}
	return newIterator(ctx, d.db, r)
}

// Peek implements kv.Reader.
func (d *DB) Peek(ctx context.Context, r kv.Range) (kv.Entry, bool, error) {
	if d.closed.Load() {
		return kv.Entry{}, false, kv.ErrClosed
	}
	return peek(ctx, d.db, r)
}

// NewSnapshot implements kv.Engine.
func (d *DB) NewSnapshot(ctx context.Context) (kv.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.closed.Load() {
		return nil, kv.ErrClosed
	}
	return &snapshot{snap: d.db.NewSnapshot()}, nil
}

// NewBatch implements kv.Engine.
func (d *DB) NewBatch() kv.Batch {
	return &batch{db: d, b: d.db.NewBatch()}
}

// Flush forces the memtable to disk.
func (d *DB) Flush() error {
	if d.closed.Load() {
		return kv.ErrClosed
	}
	return d.db.Flush()
}

// Metrics returns Pebble's internal metrics.
func (d *DB) Metrics() *pebble.Metrics {
	return d.db.Metrics()
}

// Close implements kv.Engine. Closing twice is a no-op.
func (d *DB) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.db.Close()
}

type snapshot struct {
	snap   *pebble.Snapshot
	closed atomic.Bool
}

func (s *snapshot) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, kv.ErrClosed
	}
	return get(ctx, s.snap, key)
}

func (s *snapshot) NewIterator(ctx context.Context, r kv.Range) (kv.Iterator, error) {
	if s.closed.Load() {
		return nil, kv.ErrClosed
	}
	return newIterator(ctx, s.snap, r)
}

func (s *snapshot) Peek(ctx context.Context, r kv.Range) (kv.Entry, bool, error) {
	if s.closed.Load() {
		return kv.Entry{}, false, kv.ErrClosed
	}
	return peek(ctx, s.snap, r)
}

func (s *snapshot) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.snap.Close()
}

func get(ctx context.Context, r pebble.Reader, key []byte) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	v, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	return append([]byte(nil), v...), true, nil
}

func newIterator(ctx context.Context, r pebble.Reader, rng kv.Range) (kv.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	it, err := r.NewIter(&pebble.IterOptions{
		LowerBound: rng.Lower,
		UpperBound: rng.Upper,
	})
	if err != nil {
		return nil, err
	}

	return &iterator{ctx: ctx, it: it, reverse: rng.Reverse, limit: rng.Limit}, nil
}

func peek(ctx context.Context, r pebble.Reader, rng kv.Range) (kv.Entry, bool, error) {
	rng.Limit = 1

	it, err := newIterator(ctx, r, rng)
	if err != nil {
		return kv.Entry{}, false, err
	}

	entries, err := kv.Collect(it)
	if err != nil || len(entries) == 0 {
		return kv.Entry{}, false, err
	}

	return entries[0], true, nil
}

type iterator struct {
	ctx     context.Context
	it      *pebble.Iterator
	reverse bool
	limit   int
	n       int
	started bool
	err     error
}

func (i *iterator) Next() bool {
	if i.err != nil || (i.limit > 0 && i.n >= i.limit) {
		return false
	}
	if err := i.ctx.Err(); err != nil {
		i.err = err
		return false
	}

	var ok bool
	switch {
	case !i.started && i.reverse:
		ok = i.it.Last()
	case !i.started:
		ok = i.it.First()
	case i.reverse:
		ok = i.it.Prev()
	default:
		ok = i.it.Next()
	}
	i.started = true

	if ok {
		i.n++
	}
	return ok
}

func (i *iterator) Key() []byte   { return i.it.Key() }
func (i *iterator) Value() []byte { return i.it.Value() }

func (i *iterator) Err() error {
	if i.err != nil {
		return i.err
	}
	return i.it.Error()
}

func (i *iterator) Close() error {
	return i.it.Close()
}

type batch struct {
	db        *DB
	b         *pebble.Batch
	ops       int
	committed bool
}

func (b *batch) check() error {
	if b.b == nil {
		return kv.ErrClosed
	}
	if b.committed {
		return errors.New("pebblekv: batch already committed")
	}
	return nil
}

func (b *batch) Set(key, value []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	b.ops++
	return b.b.Set(key, value, nil)
}

func (b *batch) Delete(key []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	b.ops++
	return b.b.Delete(key, nil)
}

func (b *batch) DeleteRange(start, end []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	b.ops++
	return b.b.DeleteRange(start, end, nil)
}

func (b *batch) Len() int { return b.ops }

func (b *batch) Commit(ctx context.Context, mode kv.WriteMode) error {
	if err := b.check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.db.closed.Load() {
		return kv.ErrClosed
	}

	wo := pebble.Sync
	if mode == kv.NoSync {
		wo = pebble.NoSync
	}

	if err := b.b.Commit(wo); err != nil {
		return err
	}
	b.committed = true

	return nil
}

func (b *batch) Close() error {
	if b.b == nil {
		return nil
	}
	err := b.b.Close()
	b.b = nil
	return err
}
