package corestore

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/corestore/internal/cache"
	"github.com/hupe1980/corestore/internal/keys"
	"github.com/hupe1980/corestore/kv"
	"github.com/hupe1980/corestore/kv/pebblekv"
	"github.com/hupe1980/corestore/model"
)

// Storage multiplexes many cores over one kv.Engine.
//
// Only Create, Clear and Close take the write side of the storage lock.
// Reads and writes to bound cores never block on it.
type Storage struct {
	mu         sync.RWMutex
	engine     kv.Engine
	ownsEngine bool
	opts       options
	logger     *Logger
	metrics    MetricsCollector
	pointers   *cache.LRU[model.DiscoveryKey, model.CorePointer]
	closed     atomic.Bool
}

// New creates a Storage on top of engine. The caller keeps ownership of engine.
func New(engine kv.Engine, optFns ...Option) *Storage {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Storage{
		engine:   engine,
		opts:     opts,
		logger:   opts.logger,
		metrics:  opts.metricsCollector,
		pointers: cache.NewLRU[model.DiscoveryKey, model.CorePointer](opts.pointerCacheSize),
	}
}

// Open opens a Pebble database in dir and wraps it. Close closes the database.
func Open(dir string, optFns ...Option) (*Storage, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := pebblekv.Open(dir, opts.engineOptions...)
	if err != nil {
		return nil, err
	}

	s := New(db, optFns...)
	s.ownsEngine = true

	return s, nil
}

// Engine returns the underlying engine.
func (s *Storage) Engine() kv.Engine {
	return s.engine
}

// Logger returns the configured logger.
func (s *Storage) Logger() *Logger {
	return s.logger
}

// Metrics returns the configured metrics collector.
func (s *Storage) Metrics() MetricsCollector {
	return s.metrics
}

// Get returns an unbound handle for dk. It does not touch the engine.
func (s *Storage) Get(dk model.DiscoveryKey) *Core {
	return newCore(s, &dk)
}

// Default returns an unbound handle that resolves to the default discovery
// key on Open.
func (s *Storage) Default() *Core {
	return newCore(s, nil)
}

// Info returns the global allocation counters.
// ok is false on an empty store.
func (s *Storage) Info(ctx context.Context) (model.StorageInfo, bool, error) {
	if err := s.checkOpen(); err != nil {
		return model.StorageInfo{}, false, err
	}
	return s.info(ctx, s.engine)
}

// List yields every known discovery key in byte order.
func (s *Storage) List(ctx context.Context) iter.Seq2[model.DiscoveryKey, error] {
	return func(yield func(model.DiscoveryKey, error) bool) {
		if err := s.checkOpen(); err != nil {
			yield(model.DiscoveryKey{}, err)
			return
		}

		lower, upper := keys.TopRange(keys.DiscoveryKeys)

		it, err := s.engine.NewIterator(ctx, kv.Range{Lower: lower, Upper: upper})
		if err != nil {
			yield(model.DiscoveryKey{}, err)
			return
		}
		defer it.Close()

		for it.Next() {
			// Strip the namespace byte.
			dk, err := model.DiscoveryKeyFromBytes(it.Key()[len(lower):])
			if err != nil {
				err = corrupt("discovery key", it.Key(), err)
			}
			if !yield(dk, err) || err != nil {
				return
			}
		}

		if err := it.Err(); err != nil {
			yield(model.DiscoveryKey{}, err)
		}
	}
}

// Clear deletes every record and resets the store to empty.
// Handles bound before Clear keep stale pointers and must not be used.
func (s *Storage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	b := s.engine.NewBatch()
	defer b.Close()

	start := keys.AppendTop(nil, keys.StorageInfo)
	err := b.DeleteRange(start, []byte{keys.End})
	if err == nil {
		err = b.Commit(ctx, kv.Sync)
	}

	// Drop cached pointers even on failure; the store is in an unknown state.
	s.pointers.Purge()
	s.logger.LogClear(ctx, err)

	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Snapshot returns a consistent read view of the whole store.
// The caller must close it.
func (s *Storage) Snapshot(ctx context.Context) (kv.Snapshot, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.engine.NewSnapshot(ctx)
}

// Exclusive runs fn while holding the write side of the storage lock, so
// no core is created or cleared concurrently. Cached pointers are dropped
// afterwards because fn may rewrite the directory.
func (s *Storage) Exclusive(ctx context.Context, fn func(ctx context.Context, engine kv.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	defer s.pointers.Purge()

	return fn(ctx, s.engine)
}

// Close releases the storage. Subsequent calls return ErrClosed.
// The engine is closed only if the storage opened it.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.pointers.Purge()

	if s.ownsEngine {
		return s.engine.Close()
	}
	return nil
}

func (s *Storage) checkOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}
