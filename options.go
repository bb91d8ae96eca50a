package corestore

import (
	"github.com/hupe1980/corestore/internal/arena"
	"github.com/hupe1980/corestore/kv/pebblekv"
)

// DefaultPointerCacheSize is the number of discovery key to pointer mappings
// kept in memory.
const DefaultPointerCacheSize = 1024

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	pointerCacheSize int
	arenaSize        int
	syncWrites       bool
	engineOptions    []pebblekv.Option
}

// Option configures Storage.
type Option func(*options)

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &corestore.BasicMetricsCollector{}
//	s := corestore.New(engine, corestore.WithMetricsCollector(metrics))
//	// ... later
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithPointerCacheSize sets how many pointer lookups are cached.
// Zero disables the cache.
func WithPointerCacheSize(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.pointerCacheSize = n
		}
	}
}

// WithArenaSize sets the scratch buffer size of each batch.
func WithArenaSize(n int) Option {
	return func(o *options) {
		o.arenaSize = n
	}
}

// WithSyncWrites controls whether WriteBatch.Flush waits for durability.
// Create always syncs.
func WithSyncWrites(sync bool) Option {
	return func(o *options) {
		o.syncWrites = sync
	}
}

// WithEngineOptions passes options to the Pebble engine created by Open.
func WithEngineOptions(opts ...pebblekv.Option) Option {
	return func(o *options) {
		o.engineOptions = append(o.engineOptions, opts...)
	}
}

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		pointerCacheSize: DefaultPointerCacheSize,
		arenaSize:        arena.DefaultSize,
		syncWrites:       true,
	}
}

func (o *options) newArena() *arena.Arena {
	if o.arenaSize == arena.DefaultSize {
		return arena.Get()
	}
	return arena.New(o.arenaSize)
}

func (o *options) releaseArena(a *arena.Arena) {
	if o.arenaSize == arena.DefaultSize {
		arena.Put(a)
		return
	}
	a.Reset()
}
