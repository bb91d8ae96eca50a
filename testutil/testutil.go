package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/hupe1980/corestore"
	"github.com/hupe1980/corestore/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the seed the RNG was created with.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random int in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Fill fills dst with random bytes.
func (r *RNG) Fill(dst []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.rand.Read(dst)
}

// Bytes returns n random bytes.
func (r *RNG) Bytes(n int) []byte {
	b := make([]byte, n)
	r.Fill(b)
	return b
}

// DiscoveryKey returns a random discovery key.
func (r *RNG) DiscoveryKey() model.DiscoveryKey {
	var dk model.DiscoveryKey
	r.Fill(dk[:])
	return dk
}

// Hash returns a random tree node hash.
func (r *RNG) Hash() [model.HashSize]byte {
	var h [model.HashSize]byte
	r.Fill(h[:])
	return h
}

// Fixture describes the contents Populate writes.
type Fixture struct {
	// Cores is the number of cores to create.
	Cores int
	// Blocks is the number of blocks per core. Each block also gets a tree node.
	Blocks uint64
	// BlockSize is the block length in bytes. If 0, defaults to 64.
	BlockSize int
	// Compressible makes block contents repetitive instead of random.
	Compressible bool
}

// BitfieldPageSize is the length of the pages Populate writes.
const BitfieldPageSize = 4096

// Populate creates f.Cores cores in s and fills them with blocks, tree
// nodes, a bitfield page, hints and user data. It returns the discovery keys
// in creation order.
func Populate(ctx context.Context, s *corestore.Storage, rng *RNG, f Fixture) ([]model.DiscoveryKey, error) {
	if f.BlockSize <= 0 {
		f.BlockSize = 64
	}

	dks := make([]model.DiscoveryKey, 0, f.Cores)
	for i := range f.Cores {
		dk := rng.DiscoveryKey()
		c := s.Get(dk)

		created, err := c.Create(ctx, corestore.CreateOptions{
			Key:  rng.Bytes(32),
			Head: &model.CoreHead{Length: f.Blocks, ByteLength: f.Blocks * uint64(f.BlockSize), Signature: rng.Bytes(64)},
		})
		if err != nil {
			return nil, err
		}
		if !created {
			return nil, fmt.Errorf("testutil: core %s already exists", dk)
		}

		b, err := c.CreateWriteBatch()
		if err != nil {
			return nil, err
		}
		for j := range f.Blocks {
			if err := b.PutBlock(j, block(rng, f, i, j)); err != nil {
				return nil, err
			}
			node := model.TreeNode{Index: 2 * j, Size: uint64(f.BlockSize), Hash: rng.Hash()}
			if err := b.PutTreeNode(node); err != nil {
				return nil, err
			}
		}
		if err := b.PutBitfieldPage(0, rng.Bytes(BitfieldPageSize)); err != nil {
			return nil, err
		}
		if err := b.SetHints(model.DataHints{ContiguousLength: f.Blocks}); err != nil {
			return nil, err
		}
		if err := b.PutUserData("fixture", []byte(fmt.Sprintf("core-%d", i))); err != nil {
			return nil, err
		}
		if err := b.Flush(ctx); err != nil {
			return nil, err
		}

		dks = append(dks, dk)
	}
	return dks, nil
}

func block(rng *RNG, f Fixture, core int, index uint64) []byte {
	if !f.Compressible {
		return rng.Bytes(f.BlockSize)
	}
	pattern := []byte(fmt.Sprintf("core %d block %d;", core, index))
	b := make([]byte, f.BlockSize)
	for i := range b {
		b[i] = pattern[i%len(pattern)]
	}
	return b
}
