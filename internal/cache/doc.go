// Package cache provides a bounded LRU cache.
//
// corestore uses it for discovery key to pointer lookups. Pointers never
// change once written, so entries only leave the cache by eviction or an
// explicit Purge after the store is cleared.
package cache
