package pebblekv

import (
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// DefaultCacheSize is the block cache size used when none is configured (64 MiB).
const DefaultCacheSize = 64 << 20

type options struct {
	cacheSize   int64
	readOnly    bool
	inMemory    bool
	createIfNew bool
	fs          vfs.FS
}

// Option configures Open.
type Option func(*options)

// WithCacheSize sets the block cache size in bytes.
func WithCacheSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// WithReadOnly opens the database read-only.
func WithReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

// WithInMemory keeps the database in memory. The directory is ignored.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithErrorIfNotExists fails Open when the directory holds no database.
func WithErrorIfNotExists() Option {
	return func(o *options) {
		o.createIfNew = false
	}
}

// WithFS sets the filesystem the database lives on. It takes precedence
// over WithInMemory.
func WithFS(fs vfs.FS) Option {
	return func(o *options) {
		o.fs = fs
	}
}

func defaultOptions() options {
	return options{
		cacheSize:   DefaultCacheSize,
		createIfNew: true,
	}
}

func (o options) pebble() (*pebble.Options, *pebble.Cache) {
	cache := pebble.NewCache(o.cacheSize)

	po := &pebble.Options{
		Cache:            cache,
		ReadOnly:         o.readOnly,
		ErrorIfNotExists: !o.createIfNew,
	}

	switch {
	case o.fs != nil:
		po.FS = o.fs
	case o.inMemory:
		po.FS = vfs.NewMem()
	}

	return po, cache
}
