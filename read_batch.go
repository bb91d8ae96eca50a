package corestore

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/corestore/internal/arena"
	"github.com/hupe1980/corestore/internal/keys"
	"github.com/hupe1980/corestore/internal/record"
	"github.com/hupe1980/corestore/kv"
	"github.com/hupe1980/corestore/model"
)

// Pending is the result of a read queued on a ReadBatch.
// It resolves when the batch is flushed.
type Pending[T any] struct {
	value T
	ok    bool
	err   error
	done  bool
}

// Get returns the resolved value. ok is false when the record is absent.
// Before the batch is flushed Get returns ErrNotFlushed.
func (p *Pending[T]) Get() (T, bool, error) {
	if !p.done {
		var zero T
		return zero, false, ErrNotFlushed
	}
	return p.value, p.ok, p.err
}

type readOp struct {
	key     arena.Span
	resolve func(key, value []byte, found bool, err error)
}

// ReadBatch queues point reads against one core and resolves them together
// from a single engine snapshot on Flush.
//
// Keys are encoded into the batch arena when a read is queued and are only
// consumed at Flush; the arena is not reset before then.
type ReadBatch struct {
	s     *Storage
	ptr   model.CorePointer
	arena *arena.Arena
	enc   keys.Encoder
	ops   []readOp
	done  bool
}

func (s *Storage) newReadBatch(ptr model.CorePointer) *ReadBatch {
	a := s.opts.newArena()
	return &ReadBatch{
		s:     s,
		ptr:   ptr,
		arena: a,
		enc:   keys.NewEncoder(a),
	}
}

// Len returns the number of queued reads.
func (b *ReadBatch) Len() int { return len(b.ops) }

// missFunc decides what an absent record resolves to.
type missFunc[T any] func() (T, bool, error)

func addRead[T any](b *ReadBatch, kind string, key keyFunc, decode func([]byte) (T, error), miss missFunc[T]) *Pending[T] {
	p := &Pending[T]{}
	if b.done {
		p.done, p.err = true, ErrBatchFlushed
		return p
	}

	b.ops = append(b.ops, readOp{
		key: key(b.enc, b.ptr),
		resolve: func(k, v []byte, found bool, err error) {
			p.done = true

			switch {
			case err != nil:
				p.err = err
			case !found:
				if miss != nil {
					p.value, p.ok, p.err = miss()
				}
			default:
				val, err := decode(v)
				if err != nil {
					p.err = corrupt(kind, k, err)
					return
				}
				p.value, p.ok = val, true
			}
		},
	})

	return p
}

func rawValue(v []byte) ([]byte, error) { return v, nil }

func present([]byte) (bool, error) { return true, nil }

func absent() (bool, bool, error) { return false, true, nil }

func mustExist[T any](kind string, index uint64, must bool) missFunc[T] {
	if !must {
		return nil
	}
	return func() (T, bool, error) {
		var zero T
		return zero, false, &NotFoundError{Kind: kind, Index: index}
	}
}

// GetHead queues a read of the head.
func (b *ReadBatch) GetHead() *Pending[model.CoreHead] {
	return addRead(b, "head", coreKey(keys.CoreHead), record.DecodeCoreHead, nil)
}

// GetAuth queues a read of the core auth.
func (b *ReadBatch) GetAuth() *Pending[model.CoreAuth] {
	return addRead(b, "auth", coreKey(keys.CoreManifest), record.DecodeCoreAuth, nil)
}

// GetLocalKeyPair queues a read of the local key pair.
func (b *ReadBatch) GetLocalKeyPair() *Pending[model.KeyPair] {
	return addRead(b, "key pair", coreKey(keys.CoreLocalSeed), record.DecodeKeyPair, nil)
}

// GetEncryptionKey queues a read of the encryption key.
func (b *ReadBatch) GetEncryptionKey() *Pending[[]byte] {
	return addRead(b, "encryption key", coreKey(keys.CoreEncryptionKey), rawValue, nil)
}

// GetDataInfo queues a read of the data info.
func (b *ReadBatch) GetDataInfo() *Pending[model.DataInfo] {
	return addRead(b, "data info", dataKey(keys.DataInfo), record.DecodeDataInfo, nil)
}

// GetDependency queues a read of the data dependency.
func (b *ReadBatch) GetDependency() *Pending[model.DataDependency] {
	return addRead(b, "dependency", dataKey(keys.DataDependency), record.DecodeDataDependency, nil)
}

// GetHints queues a read of the data hints.
func (b *ReadBatch) GetHints() *Pending[model.DataHints] {
	return addRead(b, "hints", dataKey(keys.DataHints), record.DecodeDataHints, nil)
}

// GetUserData queues a read of the user data stored under key.
func (b *ReadBatch) GetUserData(key string) *Pending[[]byte] {
	return addRead(b, "user data", stringKey(keys.DataUserData, key), rawValue, nil)
}

// GetTreeNode queues a read of the tree node at index.
func (b *ReadBatch) GetTreeNode(index uint64, mustExistFlag bool) *Pending[model.TreeNode] {
	return addRead(b, "tree node", indexKey(keys.DataTree, index), record.DecodeTreeNode,
		mustExist[model.TreeNode]("tree node", index, mustExistFlag))
}

// HasTreeNode queues an existence check for the tree node at index.
func (b *ReadBatch) HasTreeNode(index uint64) *Pending[bool] {
	return addRead(b, "tree node", indexKey(keys.DataTree, index), present, absent)
}

// GetBitfieldPage queues a read of the bitfield page at index.
func (b *ReadBatch) GetBitfieldPage(index uint64) *Pending[[]byte] {
	return addRead(b, "bitfield page", indexKey(keys.DataBitfield, index), rawValue, nil)
}

// GetBlock queues a read of the block at index.
func (b *ReadBatch) GetBlock(index uint64, mustExistFlag bool) *Pending[[]byte] {
	return addRead(b, "block", indexKey(keys.DataBlock, index), rawValue,
		mustExist[[]byte]("block", index, mustExistFlag))
}

// HasBlock queues an existence check for the block at index.
func (b *ReadBatch) HasBlock(index uint64) *Pending[bool] {
	return addRead(b, "block", indexKey(keys.DataBlock, index), present, absent)
}

// Flush resolves every queued read. Engine failures are returned and also
// reported through the affected Pending values. A batch can be flushed once.
func (b *ReadBatch) Flush(ctx context.Context) error {
	if b.done {
		return ErrBatchFlushed
	}
	b.done = true
	defer b.release()

	start := time.Now()
	err := b.resolve(ctx)

	b.s.metrics.RecordFlush(BatchRead, len(b.ops), time.Since(start), err)
	b.logger(err).LogFlush(ctx, BatchRead, len(b.ops), err)

	return err
}

// TryFlush flushes the batch without returning an error. Failures are logged
// and counted; the Pending values still carry them.
func (b *ReadBatch) TryFlush(ctx context.Context) {
	err := b.Flush(ctx)
	if err == nil || errors.Is(err, ErrBatchFlushed) {
		return
	}

	b.logger(err).LogBestEffortFailure(ctx, BatchRead, len(b.ops), err)
	b.s.metrics.RecordBestEffortFailure(BatchRead, len(b.ops), err)
}

// logger scopes failures to the batch's core.
func (b *ReadBatch) logger(err error) *Logger {
	if err == nil {
		return b.s.logger
	}
	return b.s.logger.WithPointer(b.ptr)
}

func (b *ReadBatch) resolve(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}

	if err := b.s.checkOpen(); err != nil {
		b.fail(err)
		return err
	}

	var r kv.Reader = b.s.engine
	if len(b.ops) > 1 {
		snap, err := b.s.engine.NewSnapshot(ctx)
		if err != nil {
			b.fail(err)
			return err
		}
		defer snap.Close()
		r = snap
	}

	var firstErr error
	for _, op := range b.ops {
		key, err := op.key.Bytes()
		if err != nil {
			op.resolve(nil, nil, false, err)
			firstErr = firstError(firstErr, err)
			continue
		}

		v, found, err := r.Get(ctx, key)
		op.resolve(key, v, found, err)
		firstErr = firstError(firstErr, err)
	}

	return firstErr
}

// Discard drops the batch. Queued reads resolve to ErrBatchFlushed.
func (b *ReadBatch) Discard() {
	if b.done {
		return
	}
	b.done = true
	b.fail(ErrBatchFlushed)
	b.release()
}

func (b *ReadBatch) fail(err error) {
	for _, op := range b.ops {
		op.resolve(nil, nil, false, err)
	}
}

func (b *ReadBatch) release() {
	if b.arena != nil {
		b.s.opts.releaseArena(b.arena)
		b.arena = nil
	}
}

func firstError(first, err error) error {
	if first != nil {
		return first
	}
	return err
}
