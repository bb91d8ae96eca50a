// Package kvtest provides kv.Engine helpers for tests.
package kvtest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/corestore/kv"
	"github.com/hupe1980/corestore/kv/pebblekv"
)

// NewMem opens an in-memory engine that is closed when t finishes.
func NewMem(t testing.TB) *pebblekv.DB {
	t.Helper()

	db, err := pebblekv.OpenMem()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// FaultyEngine wraps an engine and fails selected operations on demand.
type FaultyEngine struct {
	kv.Engine

	mu        sync.Mutex
	commitErr error
	getErr    error
	iterErr   error

	commits   atomic.Int64
	snapshots atomic.Int64
	gets      atomic.Int64
}

var _ kv.Engine = (*FaultyEngine)(nil)

// NewFaulty wraps e.
func NewFaulty(e kv.Engine) *FaultyEngine {
	return &FaultyEngine{Engine: e}
}

// FailCommits makes every batch commit return err. A nil err heals the engine.
func (f *FaultyEngine) FailCommits(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitErr = err
}

// FailGets makes every point read return err.
func (f *FaultyEngine) FailGets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// FailIterators makes every iterator and peek return err.
func (f *FaultyEngine) FailIterators(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.iterErr = err
}

// Commits returns the number of attempted commits.
func (f *FaultyEngine) Commits() int64 { return f.commits.Load() }

// Snapshots returns the number of snapshots taken.
func (f *FaultyEngine) Snapshots() int64 { return f.snapshots.Load() }

// Gets returns the number of point reads, snapshots included.
func (f *FaultyEngine) Gets() int64 { return f.gets.Load() }

func (f *FaultyEngine) faults() (commit, get, iter error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commitErr, f.getErr, f.iterErr
}

func (f *FaultyEngine) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	return f.reader(f.Engine).Get(ctx, key)
}

func (f *FaultyEngine) NewIterator(ctx context.Context, r kv.Range) (kv.Iterator, error) {
	return f.reader(f.Engine).NewIterator(ctx, r)
}

func (f *FaultyEngine) Peek(ctx context.Context, r kv.Range) (kv.Entry, bool, error) {
	return f.reader(f.Engine).Peek(ctx, r)
}

func (f *FaultyEngine) NewSnapshot(ctx context.Context) (kv.Snapshot, error) {
	snap, err := f.Engine.NewSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	f.snapshots.Add(1)
	return &faultySnapshot{Snapshot: snap, faultyReader: f.reader(snap)}, nil
}

func (f *FaultyEngine) NewBatch() kv.Batch {
	return &faultyBatch{Batch: f.Engine.NewBatch(), f: f}
}

func (f *FaultyEngine) reader(r kv.Reader) faultyReader {
	return faultyReader{r: r, f: f}
}

type faultyReader struct {
	r kv.Reader
	f *FaultyEngine
}

func (r faultyReader) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	r.f.gets.Add(1)
	if _, err, _ := r.f.faults(); err != nil {
		return nil, false, err
	}
	return r.r.Get(ctx, key)
}

func (r faultyReader) NewIterator(ctx context.Context, rng kv.Range) (kv.Iterator, error) {
	if _, _, err := r.f.faults(); err != nil {
		return nil, err
	}
	return r.r.NewIterator(ctx, rng)
}

func (r faultyReader) Peek(ctx context.Context, rng kv.Range) (kv.Entry, bool, error) {
	if _, _, err := r.f.faults(); err != nil {
		return kv.Entry{}, false, err
	}
	return r.r.Peek(ctx, rng)
}

type faultySnapshot struct {
	kv.Snapshot
	faultyReader
}

func (s *faultySnapshot) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	return s.faultyReader.Get(ctx, key)
}

func (s *faultySnapshot) NewIterator(ctx context.Context, rng kv.Range) (kv.Iterator, error) {
	return s.faultyReader.NewIterator(ctx, rng)
}

func (s *faultySnapshot) Peek(ctx context.Context, rng kv.Range) (kv.Entry, bool, error) {
	return s.faultyReader.Peek(ctx, rng)
}

type faultyBatch struct {
	kv.Batch
	f *FaultyEngine
}

func (b *faultyBatch) Commit(ctx context.Context, mode kv.WriteMode) error {
	b.f.commits.Add(1)
	if err, _, _ := b.f.faults(); err != nil {
		return err
	}
	return b.Batch.Commit(ctx, mode)
}
