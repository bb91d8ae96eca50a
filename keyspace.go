package corestore

import (
	"github.com/hupe1980/corestore/internal/arena"
	"github.com/hupe1980/corestore/internal/keys"
	"github.com/hupe1980/corestore/model"
)

// keyFunc encodes one record key of the core at ptr into the batch arena.
type keyFunc func(e keys.Encoder, ptr model.CorePointer) arena.Span

func coreKey(typ keys.CoreType) keyFunc {
	return func(e keys.Encoder, ptr model.CorePointer) arena.Span {
		return e.Core(ptr.Core, typ)
	}
}

func dataKey(typ keys.DataType) keyFunc {
	return func(e keys.Encoder, ptr model.CorePointer) arena.Span {
		return e.Data(ptr.Data, typ)
	}
}

func indexKey(typ keys.DataType, index uint64) keyFunc {
	return func(e keys.Encoder, ptr model.CorePointer) arena.Span {
		return e.DataIndex(ptr.Data, typ, index)
	}
}

func stringKey(typ keys.DataType, key string) keyFunc {
	return func(e keys.Encoder, ptr model.CorePointer) arena.Span {
		return e.DataString(ptr.Data, typ, key)
	}
}

// indexEnd returns the exclusive key bound for index. Infinity maps to the
// end of the record type.
func indexEnd(typ keys.DataType, index uint64) keyFunc {
	if index == Infinity {
		return func(e keys.Encoder, ptr model.CorePointer) arena.Span {
			return e.DataEnd(ptr.Data, typ)
		}
	}
	return indexKey(typ, index)
}
