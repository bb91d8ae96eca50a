package record

import (
	"github.com/hupe1980/corestore/model"
)

const flagManifest = 1

// AppendStorageInfo encodes v.
func AppendStorageInfo(dst []byte, v model.StorageInfo) []byte {
	dst = AppendUint(dst, v.Free)
	return AppendUint(dst, v.Total)
}

// DecodeStorageInfo decodes a StorageInfo.
func DecodeStorageInfo(b []byte) (model.StorageInfo, error) {
	s := state{b: b}
	v := model.StorageInfo{Free: s.uint(), Total: s.uint()}
	return v, s.done()
}

// AppendCorePointer encodes v.
func AppendCorePointer(dst []byte, v model.CorePointer) []byte {
	dst = AppendUint(dst, v.Core)
	return AppendUint(dst, v.Data)
}

// DecodeCorePointer decodes a CorePointer.
func DecodeCorePointer(b []byte) (model.CorePointer, error) {
	s := state{b: b}
	v := model.CorePointer{Core: s.uint(), Data: s.uint()}
	return v, s.done()
}

// CoreAuthSize returns the encoded size of v.
func CoreAuthSize(v model.CoreAuth) int {
	n := 1 + BufferSize(v.Key)
	if v.Manifest != nil {
		n += BufferSize(v.Manifest)
	}
	return n
}

// AppendCoreAuth encodes v. A nil manifest is stored as absent.
func AppendCoreAuth(dst []byte, v model.CoreAuth) []byte {
	var flags uint64
	if v.Manifest != nil {
		flags |= flagManifest
	}

	dst = AppendUint(dst, flags)
	dst = AppendBuffer(dst, v.Key)
	if v.Manifest != nil {
		dst = AppendBuffer(dst, v.Manifest)
	}

	return dst
}

// DecodeCoreAuth decodes a CoreAuth.
func DecodeCoreAuth(b []byte) (model.CoreAuth, error) {
	s := state{b: b}
	flags := s.uint()

	v := model.CoreAuth{Key: s.buffer()}
	if flags&flagManifest != 0 {
		v.Manifest = s.buffer()
	}

	return v, s.done()
}

// CoreHeadSize returns the encoded size of v.
func CoreHeadSize(v model.CoreHead) int {
	return UintSize(v.Fork) + UintSize(v.Length) + UintSize(v.ByteLength) + BufferSize(v.Signature)
}

// AppendCoreHead encodes v.
func AppendCoreHead(dst []byte, v model.CoreHead) []byte {
	dst = AppendUint(dst, v.Fork)
	dst = AppendUint(dst, v.Length)
	dst = AppendUint(dst, v.ByteLength)
	return AppendBuffer(dst, v.Signature)
}

// DecodeCoreHead decodes a CoreHead.
func DecodeCoreHead(b []byte) (model.CoreHead, error) {
	s := state{b: b}
	v := model.CoreHead{
		Fork:       s.uint(),
		Length:     s.uint(),
		ByteLength: s.uint(),
		Signature:  s.buffer(),
	}
	return v, s.done()
}

// KeyPairSize returns the encoded size of v.
func KeyPairSize(v model.KeyPair) int {
	return BufferSize(v.Seed)
}

// AppendKeyPair encodes v.
func AppendKeyPair(dst []byte, v model.KeyPair) []byte {
	return AppendBuffer(dst, v.Seed)
}

// DecodeKeyPair decodes a KeyPair.
func DecodeKeyPair(b []byte) (model.KeyPair, error) {
	s := state{b: b}
	v := model.KeyPair{Seed: s.buffer()}
	return v, s.done()
}

// DataInfoSize is the worst-case encoded size of a DataInfo.
const DataInfoSize = MaxUintSize

// AppendDataInfo encodes v.
func AppendDataInfo(dst []byte, v model.DataInfo) []byte {
	return AppendUint(dst, v.Version)
}

// DecodeDataInfo decodes a DataInfo. It does not check the version.
func DecodeDataInfo(b []byte) (model.DataInfo, error) {
	s := state{b: b}
	v := model.DataInfo{Version: s.uint()}
	return v, s.done()
}

// DataDependencySize is the worst-case encoded size of a DataDependency.
const DataDependencySize = 2 * MaxUintSize

// AppendDataDependency encodes v.
func AppendDataDependency(dst []byte, v model.DataDependency) []byte {
	dst = AppendUint(dst, v.DataPointer)
	return AppendUint(dst, v.Length)
}

// DecodeDataDependency decodes a DataDependency.
func DecodeDataDependency(b []byte) (model.DataDependency, error) {
	s := state{b: b}
	v := model.DataDependency{DataPointer: s.uint(), Length: s.uint()}
	return v, s.done()
}

// DataHintsSize is the worst-case encoded size of a DataHints.
const DataHintsSize = MaxUintSize

// AppendDataHints encodes v.
func AppendDataHints(dst []byte, v model.DataHints) []byte {
	return AppendUint(dst, v.ContiguousLength)
}

// DecodeDataHints decodes a DataHints.
func DecodeDataHints(b []byte) (model.DataHints, error) {
	s := state{b: b}
	v := model.DataHints{ContiguousLength: s.uint()}
	return v, s.done()
}

// TreeNodeSize is the worst-case encoded size of a TreeNode.
const TreeNodeSize = 2*MaxUintSize + model.HashSize

// AppendTreeNode encodes v.
func AppendTreeNode(dst []byte, v model.TreeNode) []byte {
	dst = AppendUint(dst, v.Index)
	dst = AppendUint(dst, v.Size)
	return append(dst, v.Hash[:]...)
}

// DecodeTreeNode decodes a TreeNode.
func DecodeTreeNode(b []byte) (model.TreeNode, error) {
	s := state{b: b}

	v := model.TreeNode{Index: s.uint(), Size: s.uint()}
	copy(v.Hash[:], s.fixed(model.HashSize))

	return v, s.done()
}
