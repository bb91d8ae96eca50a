package corestore

import (
	"context"
	"iter"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/corestore/internal/keys"
	"github.com/hupe1980/corestore/internal/record"
	"github.com/hupe1980/corestore/kv"
	"github.com/hupe1980/corestore/model"
)

// decodeFunc turns one engine entry into a record. suffix is the key with the
// record type prefix removed.
type decodeFunc[T any] func(suffix, value []byte) (T, error)

// stream iterates one record type of the core. Keys and values are copied
// before decoding, so yielded records own their memory.
func stream[T any](ctx context.Context, c *Core, kind string, typ keys.DataType, toRange func(rangeOptions, []byte) kv.Range, decode decodeFunc[T], optFns []RangeOption) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		ptr, err := c.bound()
		if err != nil {
			yield(zero, err)
			return
		}

		start := time.Now()
		n := 0

		defer func() {
			c.s.metrics.RecordStream(kind, n, time.Since(start), err)
		}()

		prefix := keys.DataPrefix(ptr.Data, typ)

		it, err := c.s.engine.NewIterator(ctx, toRange(newRangeOptions(optFns), prefix))
		if err != nil {
			yield(zero, err)
			return
		}
		defer it.Close()

		for it.Next() {
			key := it.Key()

			var v T
			v, err = decode(key[len(prefix):], append([]byte(nil), it.Value()...))
			if err != nil {
				err = corrupt(kind, key, err)
				yield(zero, err)
				return
			}

			n++
			if !yield(v, nil) {
				return
			}
		}

		if err = it.Err(); err != nil {
			yield(zero, err)
		}
	}
}

func indexRange(o rangeOptions, prefix []byte) kv.Range  { return o.indexRange(prefix) }
func stringRange(o rangeOptions, prefix []byte) kv.Range { return o.stringRange(prefix) }

func decodeIndex(suffix []byte) (uint64, error) {
	index, n, err := keys.DecodeUint(suffix)
	if err != nil {
		return 0, err
	}
	if n != len(suffix) {
		return 0, record.ErrTrailingBytes
	}
	return index, nil
}

func decodeTreeNode(_, value []byte) (model.TreeNode, error) {
	return record.DecodeTreeNode(value)
}

func decodeBitfieldPage(suffix, value []byte) (model.BitfieldPage, error) {
	index, err := decodeIndex(suffix)
	return model.BitfieldPage{Index: index, Page: value}, err
}

func decodeBlock(suffix, value []byte) (model.Block, error) {
	index, err := decodeIndex(suffix)
	return model.Block{Index: index, Value: value}, err
}

func decodeUserData(suffix, value []byte) (model.UserData, error) {
	key, n, err := keys.DecodeString(suffix)
	if err == nil && n != len(suffix) {
		err = record.ErrTrailingBytes
	}
	return model.UserData{Key: key, Value: value}, err
}

// TreeNodeStream yields tree nodes in index order.
//
//	for node, err := range core.TreeNodeStream(ctx, corestore.Gte(0), corestore.Lt(10)) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(node.Index, node.Size)
//	}
func (c *Core) TreeNodeStream(ctx context.Context, opts ...RangeOption) iter.Seq2[model.TreeNode, error] {
	return stream(ctx, c, "tree node", keys.DataTree, indexRange, decodeTreeNode, opts)
}

// BitfieldPageStream yields bitfield pages in index order.
func (c *Core) BitfieldPageStream(ctx context.Context, opts ...RangeOption) iter.Seq2[model.BitfieldPage, error] {
	return stream(ctx, c, "bitfield page", keys.DataBitfield, indexRange, decodeBitfieldPage, opts)
}

// BlockStream yields blocks in index order.
func (c *Core) BlockStream(ctx context.Context, opts ...RangeOption) iter.Seq2[model.Block, error] {
	return stream(ctx, c, "block", keys.DataBlock, indexRange, decodeBlock, opts)
}

// UserDataStream yields user data entries in key order. Keys are ordered by
// length first, then byte-wise. Bound it with KeyGt, KeyGte, KeyLt and KeyLte.
func (c *Core) UserDataStream(ctx context.Context, opts ...RangeOption) iter.Seq2[model.UserData, error] {
	return stream(ctx, c, "user data", keys.DataUserData, stringRange, decodeUserData, opts)
}

// peekLast returns the highest-indexed record of typ with one reverse peek.
func peekLast[T any](ctx context.Context, c *Core, kind string, typ keys.DataType, decode decodeFunc[T]) (T, bool, error) {
	var zero T

	ptr, err := c.bound()
	if err != nil {
		return zero, false, err
	}

	prefix := keys.DataPrefix(ptr.Data, typ)
	r := rangeOptions{reverse: true}.indexRange(prefix)

	e, ok, err := c.s.engine.Peek(ctx, r)
	if err != nil || !ok {
		return zero, false, err
	}

	v, err := decode(e.Key[len(prefix):], e.Value)
	if err != nil {
		return zero, false, corrupt(kind, e.Key, err)
	}

	return v, true, nil
}

// PeekLastTreeNode returns the tree node with the highest index.
func (c *Core) PeekLastTreeNode(ctx context.Context) (model.TreeNode, bool, error) {
	return peekLast(ctx, c, "tree node", keys.DataTree, decodeTreeNode)
}

// PeekLastBitfieldPage returns the bitfield page with the highest index.
func (c *Core) PeekLastBitfieldPage(ctx context.Context) (model.BitfieldPage, bool, error) {
	return peekLast(ctx, c, "bitfield page", keys.DataBitfield, decodeBitfieldPage)
}

// PeekLastBlock returns the block with the highest index.
func (c *Core) PeekLastBlock(ctx context.Context) (model.Block, bool, error) {
	return peekLast(ctx, c, "block", keys.DataBlock, decodeBlock)
}

// BlockSet returns the indices of stored blocks within the range.
func (c *Core) BlockSet(ctx context.Context, opts ...RangeOption) (*roaring64.Bitmap, error) {
	bm := roaring64.New()

	for block, err := range c.BlockStream(ctx, opts...) {
		if err != nil {
			return nil, err
		}
		bm.Add(block.Index)
	}

	return bm, nil
}
