package model

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// DiscoveryKeySize is the length of a discovery key in bytes.
const DiscoveryKeySize = 32

// HashSize is the length of a tree node hash in bytes.
const HashSize = 32

// ErrInvalidDiscoveryKey is returned when a discovery key has the wrong length.
var ErrInvalidDiscoveryKey = errors.New("invalid discovery key")

// DiscoveryKey identifies a log.
type DiscoveryKey [DiscoveryKeySize]byte

// ParseDiscoveryKey decodes a hex encoded discovery key.
func ParseDiscoveryKey(s string) (DiscoveryKey, error) {
	var dk DiscoveryKey

	b, err := hex.DecodeString(s)
	if err != nil {
		return dk, fmt.Errorf("%w: %w", ErrInvalidDiscoveryKey, err)
	}

	return DiscoveryKeyFromBytes(b)
}

// DiscoveryKeyFromBytes copies b into a DiscoveryKey.
func DiscoveryKeyFromBytes(b []byte) (DiscoveryKey, error) {
	var dk DiscoveryKey
	if len(b) != DiscoveryKeySize {
		return dk, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidDiscoveryKey, DiscoveryKeySize, len(b))
	}

	copy(dk[:], b)

	return dk, nil
}

// String returns the hex encoding of the key.
func (dk DiscoveryKey) String() string {
	return hex.EncodeToString(dk[:])
}

// IsZero reports whether the key is all zeros.
func (dk DiscoveryKey) IsZero() bool {
	return dk == DiscoveryKey{}
}

// StorageInfo holds the global allocation counters.
// Total is the next core pointer, Free the next data pointer.
type StorageInfo struct {
	Free  uint64
	Total uint64
}

// CorePointer is the pointer pair a discovery key resolves to.
// It never changes once written.
type CorePointer struct {
	Core uint64
	Data uint64
}

// String returns a string representation of the CorePointer.
func (p CorePointer) String() string {
	return fmt.Sprintf("Ptr(%d:%d)", p.Core, p.Data)
}

// CoreAuth is the public identity of a log.
type CoreAuth struct {
	Key []byte
	// Manifest is nil when absent.
	Manifest []byte
}

// CoreHead is the current tip of a log. It is overwritten as a whole.
type CoreHead struct {
	Fork       uint64
	Length     uint64
	ByteLength uint64
	Signature  []byte
}

// KeyPair holds local signing material.
type KeyPair struct {
	Seed []byte
}

// DataInfo describes a data region. Only version 0 exists.
type DataInfo struct {
	Version uint64
}

// DataDependency records that the first Length blocks of a region are
// shared with another data region.
type DataDependency struct {
	DataPointer uint64
	Length      uint64
}

// DataHints carries cached facts about a data region.
type DataHints struct {
	ContiguousLength uint64
}

// TreeNode is one node of the flat Merkle tree.
type TreeNode struct {
	Index uint64
	Size  uint64
	Hash  [HashSize]byte
}

// BitfieldPage is one page of the local presence bitmap.
type BitfieldPage struct {
	Index uint64
	Page  []byte
}

// Block is a stored data block.
type Block struct {
	Index uint64
	Value []byte
}

// UserData is an arbitrary metadata entry.
type UserData struct {
	Key   string
	Value []byte
}
