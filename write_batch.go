package corestore

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/corestore/internal/arena"
	"github.com/hupe1980/corestore/internal/keys"
	"github.com/hupe1980/corestore/internal/record"
	"github.com/hupe1980/corestore/kv"
	"github.com/hupe1980/corestore/model"
)

// WriteBatch buffers writes to one core and commits them atomically on Flush.
// Nothing is visible before Flush.
//
// The first failed operation is sticky: later operations are skipped and
// Flush returns the error without committing anything.
//
// Spans are handed to the engine batch, which copies them, as soon as an
// operation is added; the arena is reset after every operation.
type WriteBatch struct {
	s     *Storage
	ptr   model.CorePointer
	batch kv.Batch
	arena *arena.Arena
	enc   keys.Encoder
	err   error
	done  bool
}

func (s *Storage) newWriteBatch(ptr model.CorePointer) *WriteBatch {
	a := s.opts.newArena()
	return &WriteBatch{
		s:     s,
		ptr:   ptr,
		batch: s.engine.NewBatch(),
		arena: a,
		enc:   keys.NewEncoder(a),
	}
}

// Len returns the number of buffered operations.
func (b *WriteBatch) Len() int {
	if b.batch == nil {
		return 0
	}
	return b.batch.Len()
}

// Err returns the sticky error, if any.
func (b *WriteBatch) Err() error { return b.err }

func (b *WriteBatch) check() error {
	if b.done {
		return ErrBatchFlushed
	}
	return b.err
}

func (b *WriteBatch) fail(err error) error {
	b.err = err
	return err
}

func (b *WriteBatch) set(key keyFunc, value arena.Span) error {
	if err := b.check(); err != nil {
		return err
	}
	defer b.arena.Reset()

	k, err := key(b.enc, b.ptr).Bytes()
	if err != nil {
		return b.fail(err)
	}

	v, err := value.Bytes()
	if err != nil {
		return b.fail(err)
	}

	if err := b.batch.Set(k, v); err != nil {
		return b.fail(err)
	}
	return nil
}

func (b *WriteBatch) delete(key keyFunc) error {
	if err := b.check(); err != nil {
		return err
	}
	defer b.arena.Reset()

	k, err := key(b.enc, b.ptr).Bytes()
	if err != nil {
		return b.fail(err)
	}

	if err := b.batch.Delete(k); err != nil {
		return b.fail(err)
	}
	return nil
}

func (b *WriteBatch) deleteRange(typ keys.DataType, start, end uint64) error {
	if err := b.check(); err != nil {
		return err
	}
	if start >= end {
		return nil
	}
	defer b.arena.Reset()

	lo, err := indexKey(typ, start)(b.enc, b.ptr).Bytes()
	if err != nil {
		return b.fail(err)
	}

	hi, err := indexEnd(typ, end)(b.enc, b.ptr).Bytes()
	if err != nil {
		return b.fail(err)
	}

	if err := b.batch.DeleteRange(lo, hi); err != nil {
		return b.fail(err)
	}
	return nil
}

// encode places a value in the batch arena.
func (b *WriteBatch) encode(size int, fn func(dst []byte) []byte) arena.Span {
	if b.arena == nil {
		// Released; set reports ErrBatchFlushed.
		return arena.Owned(nil)
	}
	return b.arena.Encode(size, fn)
}

// setDirectory writes the pointer entry, the counters and, for the first
// core, the default key. Only Create calls it.
func (b *WriteBatch) setDirectory(dk model.DiscoveryKey, ptr model.CorePointer, info model.StorageInfo, setDefault bool) {
	if b.check() != nil {
		return
	}

	type entry struct{ key, value []byte }

	entries := []entry{
		{keys.AppendDiscoveryKey(nil, dk[:]), record.AppendCorePointer(nil, ptr)},
		{keys.AppendTop(nil, keys.StorageInfo), record.AppendStorageInfo(nil, info)},
	}
	if setDefault {
		entries = append(entries, entry{keys.AppendTop(nil, keys.DefaultKey), dk[:]})
	}

	for _, e := range entries {
		if err := b.batch.Set(e.key, e.value); err != nil {
			b.fail(err)
			return
		}
	}
}

// SetHead overwrites the head.
func (b *WriteBatch) SetHead(head model.CoreHead) error {
	return b.set(coreKey(keys.CoreHead), b.encode(record.CoreHeadSize(head), func(dst []byte) []byte {
		return record.AppendCoreHead(dst, head)
	}))
}

// SetAuth overwrites the core auth.
func (b *WriteBatch) SetAuth(auth model.CoreAuth) error {
	return b.set(coreKey(keys.CoreManifest), b.encode(record.CoreAuthSize(auth), func(dst []byte) []byte {
		return record.AppendCoreAuth(dst, auth)
	}))
}

// SetLocalKeyPair overwrites the local key pair.
func (b *WriteBatch) SetLocalKeyPair(kp model.KeyPair) error {
	return b.set(coreKey(keys.CoreLocalSeed), b.encode(record.KeyPairSize(kp), func(dst []byte) []byte {
		return record.AppendKeyPair(dst, kp)
	}))
}

// SetEncryptionKey overwrites the encryption key.
func (b *WriteBatch) SetEncryptionKey(key []byte) error {
	return b.set(coreKey(keys.CoreEncryptionKey), arena.Owned(key))
}

// SetDataInfo overwrites the data info. Versions other than 0 fail the batch.
func (b *WriteBatch) SetDataInfo(info model.DataInfo) error {
	if err := b.check(); err != nil {
		return err
	}
	if info.Version != 0 {
		return b.fail(fmt.Errorf("%w: %d", ErrUnsupportedVersion, info.Version))
	}

	return b.set(dataKey(keys.DataInfo), b.encode(record.DataInfoSize, func(dst []byte) []byte {
		return record.AppendDataInfo(dst, info)
	}))
}

// SetDependency overwrites the data dependency.
func (b *WriteBatch) SetDependency(dep model.DataDependency) error {
	return b.set(dataKey(keys.DataDependency), b.encode(record.DataDependencySize, func(dst []byte) []byte {
		return record.AppendDataDependency(dst, dep)
	}))
}

// DeleteDependency removes the data dependency.
func (b *WriteBatch) DeleteDependency() error {
	return b.delete(dataKey(keys.DataDependency))
}

// SetHints overwrites the data hints.
func (b *WriteBatch) SetHints(hints model.DataHints) error {
	return b.set(dataKey(keys.DataHints), b.encode(record.DataHintsSize, func(dst []byte) []byte {
		return record.AppendDataHints(dst, hints)
	}))
}

// PutUserData stores value under key.
func (b *WriteBatch) PutUserData(key string, value []byte) error {
	return b.set(stringKey(keys.DataUserData, key), arena.Owned(value))
}

// DeleteUserData removes the user data stored under key.
func (b *WriteBatch) DeleteUserData(key string) error {
	return b.delete(stringKey(keys.DataUserData, key))
}

// PutTreeNode stores node at node.Index.
func (b *WriteBatch) PutTreeNode(node model.TreeNode) error {
	return b.set(indexKey(keys.DataTree, node.Index), b.encode(record.TreeNodeSize, func(dst []byte) []byte {
		return record.AppendTreeNode(dst, node)
	}))
}

// DeleteTreeNode removes the tree node at index.
func (b *WriteBatch) DeleteTreeNode(index uint64) error {
	return b.delete(indexKey(keys.DataTree, index))
}

// DeleteTreeNodeRange removes tree nodes in [start, end). Pass Infinity as
// end to remove everything from start on, index Infinity included.
func (b *WriteBatch) DeleteTreeNodeRange(start, end uint64) error {
	return b.deleteRange(keys.DataTree, start, end)
}

// PutBitfieldPage stores page at index.
func (b *WriteBatch) PutBitfieldPage(index uint64, page []byte) error {
	return b.set(indexKey(keys.DataBitfield, index), arena.Owned(page))
}

// DeleteBitfieldPage removes the bitfield page at index.
func (b *WriteBatch) DeleteBitfieldPage(index uint64) error {
	return b.delete(indexKey(keys.DataBitfield, index))
}

// DeleteBitfieldPageRange removes bitfield pages in [start, end). Pass
// Infinity as end to remove everything from start on, index Infinity included.
func (b *WriteBatch) DeleteBitfieldPageRange(start, end uint64) error {
	return b.deleteRange(keys.DataBitfield, start, end)
}

// PutBlock stores value at index.
func (b *WriteBatch) PutBlock(index uint64, value []byte) error {
	return b.set(indexKey(keys.DataBlock, index), arena.Owned(value))
}

// DeleteBlock removes the block at index.
func (b *WriteBatch) DeleteBlock(index uint64) error {
	return b.delete(indexKey(keys.DataBlock, index))
}

// DeleteBlockRange removes blocks in [start, end). Pass Infinity as end to
// remove everything from start on, index Infinity included.
func (b *WriteBatch) DeleteBlockRange(start, end uint64) error {
	return b.deleteRange(keys.DataBlock, start, end)
}

// Flush commits the batch atomically. On error nothing was applied.
// A batch can be flushed once.
func (b *WriteBatch) Flush(ctx context.Context) error {
	return b.flush(ctx, b.s.opts.syncWrites)
}

func (b *WriteBatch) flush(ctx context.Context, sync bool) error {
	if b.done {
		return ErrBatchFlushed
	}

	ops := b.Len()
	start := time.Now()

	err := b.err
	if err == nil {
		mode := kv.NoSync
		if sync {
			mode = kv.Sync
		}
		err = b.batch.Commit(ctx, mode)
	}

	b.done = true
	b.release()

	b.s.metrics.RecordFlush(BatchWrite, ops, time.Since(start), err)
	b.logger(err).LogFlush(ctx, BatchWrite, ops, err)

	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// TryFlush commits the batch without waiting for durability and without
// returning an error.
//
// A failed commit drops the whole batch. The failure is logged and reported
// through MetricsCollector.RecordBestEffortFailure, but the caller is not
// told. Use Flush when the write must not be lost.
func (b *WriteBatch) TryFlush(ctx context.Context) {
	if b.done {
		return
	}

	ops := b.Len()

	err := b.err
	if err == nil {
		err = b.batch.Commit(ctx, kv.NoSync)
	}

	b.done = true
	b.release()

	if err != nil {
		b.logger(err).LogBestEffortFailure(ctx, BatchWrite, ops, err)
		b.s.metrics.RecordBestEffortFailure(BatchWrite, ops, err)
	}
}

// logger scopes failures to the batch's core.
func (b *WriteBatch) logger(err error) *Logger {
	if err == nil {
		return b.s.logger
	}
	return b.s.logger.WithPointer(b.ptr)
}

// Discard drops the batch without committing.
func (b *WriteBatch) Discard() {
	if b.done {
		return
	}
	b.done = true
	b.release()
}

func (b *WriteBatch) release() {
	if b.batch != nil {
		_ = b.batch.Close()
	}
	if b.arena != nil {
		b.s.opts.releaseArena(b.arena)
		b.arena = nil
	}
}
