package keys

import (
	"github.com/hupe1980/corestore/internal/arena"
)

// Top-level namespaces.
const (
	StorageInfo uint64 = iota
	LocalSeed
	DiscoveryKeys
	Core
	Data
	DefaultKey
)

// CoreType discriminates records below [Core][pointer].
type CoreType uint64

const (
	CoreManifest CoreType = iota
	CoreLocalSeed
	CoreEncryptionKey
	CoreHead
	CoreBatches
)

// DataType discriminates records below [Data][pointer].
type DataType uint64

const (
	DataInfo DataType = iota
	DataUpdates
	DataDependency
	DataHints
	DataTree
	DataBitfield
	DataBlock
	DataUserData
)

// DiscoveryKeySize is the width of a discovery key.
const DiscoveryKeySize = 32

// maxPrefixSize bounds [top][pointer][sub].
const maxPrefixSize = 1 + MaxUintSize + 1

// AppendTop appends a bare top-level key.
func AppendTop(dst []byte, top uint64) []byte {
	return AppendUint(dst, top)
}

// AppendDiscoveryKey appends [DiscoveryKeys][dkey].
func AppendDiscoveryKey(dst []byte, dkey []byte) []byte {
	dst = AppendUint(dst, DiscoveryKeys)
	return append(dst, dkey...)
}

// AppendCore appends [Core][ptr][typ].
func AppendCore(dst []byte, ptr uint64, typ CoreType) []byte {
	dst = AppendUint(dst, Core)
	dst = AppendUint(dst, ptr)
	return AppendUint(dst, uint64(typ))
}

// AppendData appends the record prefix [Data][ptr][typ].
func AppendData(dst []byte, ptr uint64, typ DataType) []byte {
	dst = AppendUint(dst, Data)
	dst = AppendUint(dst, ptr)
	return AppendUint(dst, uint64(typ))
}

// AppendDataIndex appends [Data][ptr][typ][index].
func AppendDataIndex(dst []byte, ptr uint64, typ DataType, index uint64) []byte {
	return AppendUint(AppendData(dst, ptr, typ), index)
}

// AppendDataString appends [Data][ptr][typ][len][key].
func AppendDataString(dst []byte, ptr uint64, typ DataType, key string) []byte {
	return AppendString(AppendData(dst, ptr, typ), key)
}

// AppendDataEnd appends the exclusive upper bound of every key below [Data][ptr][typ].
func AppendDataEnd(dst []byte, ptr uint64, typ DataType) []byte {
	return append(AppendData(dst, ptr, typ), End)
}

// DataPrefix returns a freshly allocated [Data][ptr][typ] prefix.
func DataPrefix(ptr uint64, typ DataType) []byte {
	return AppendData(make([]byte, 0, maxPrefixSize+MaxUintSize+1), ptr, typ)
}

// DataRange returns the [start, end) bounds covering every key of one record type.
func DataRange(ptr uint64, typ DataType) (start, end []byte) {
	start = DataPrefix(ptr, typ)
	end = append(append(make([]byte, 0, len(start)+1), start...), End)
	return start, end
}

// TopRange returns the [start, end) bounds covering every key below a top-level namespace.
func TopRange(top uint64) (start, end []byte) {
	return AppendUint(nil, top), AppendUint(nil, top+1)
}

// Encoder builds keys inside an arena. The returned spans follow the arena
// ownership rules.
type Encoder struct {
	a *arena.Arena
}

// NewEncoder returns an Encoder writing into a.
func NewEncoder(a *arena.Arena) Encoder {
	return Encoder{a: a}
}

// Top encodes a bare top-level key such as StorageInfo or DefaultKey.
func (e Encoder) Top(top uint64) arena.Span {
	return e.a.Encode(MaxUintSize, func(dst []byte) []byte {
		return AppendTop(dst, top)
	})
}

// DiscoveryKey encodes the pointer-directory key of dkey.
func (e Encoder) DiscoveryKey(dkey []byte) arena.Span {
	return e.a.Encode(1+len(dkey), func(dst []byte) []byte {
		return AppendDiscoveryKey(dst, dkey)
	})
}

// Core encodes a per-core record key.
func (e Encoder) Core(ptr uint64, typ CoreType) arena.Span {
	return e.a.Encode(maxPrefixSize, func(dst []byte) []byte {
		return AppendCore(dst, ptr, typ)
	})
}

// Data encodes a singleton per-data record key.
func (e Encoder) Data(ptr uint64, typ DataType) arena.Span {
	return e.a.Encode(maxPrefixSize, func(dst []byte) []byte {
		return AppendData(dst, ptr, typ)
	})
}

// DataIndex encodes an index-addressed per-data record key.
func (e Encoder) DataIndex(ptr uint64, typ DataType, index uint64) arena.Span {
	return e.a.Encode(maxPrefixSize+MaxUintSize, func(dst []byte) []byte {
		return AppendDataIndex(dst, ptr, typ, index)
	})
}

// DataString encodes a string-addressed per-data record key.
func (e Encoder) DataString(ptr uint64, typ DataType, key string) arena.Span {
	return e.a.Encode(maxPrefixSize+StringSize(key), func(dst []byte) []byte {
		return AppendDataString(dst, ptr, typ, key)
	})
}

// DataEnd encodes the exclusive upper bound of a per-data record type.
func (e Encoder) DataEnd(ptr uint64, typ DataType) arena.Span {
	return e.a.Encode(maxPrefixSize+1, func(dst []byte) []byte {
		return AppendDataEnd(dst, ptr, typ)
	})
}
