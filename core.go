package corestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/corestore/model"
)

// unresolved marks pointers of a handle that is not bound.
const unresolved = ^uint64(0)

type coreState int

const (
	stateUnbound coreState = iota
	stateResolving
	stateBound
	stateClosed
)

func (s coreState) String() string {
	switch s {
	case stateUnbound:
		return "unbound"
	case stateResolving:
		return "resolving"
	case stateBound:
		return "bound"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CoreInfo aggregates the identity records of a core.
// Absent records are nil.
type CoreInfo struct {
	Auth          *model.CoreAuth
	KeyPair       *model.KeyPair
	EncryptionKey []byte
	Head          *model.CoreHead
}

// CreateOptions describes a new core.
type CreateOptions struct {
	// DiscoveryKey must match the handle's key if both are set.
	DiscoveryKey *model.DiscoveryKey
	// Key is the public key of the core. Required.
	Key []byte
	// Manifest is stored verbatim. Nil means absent.
	Manifest []byte
	// KeyPair is the optional local signing material.
	KeyPair *model.KeyPair
	// EncryptionKey is stored verbatim when set.
	EncryptionKey []byte
	// Head is the optional initial head.
	Head *model.CoreHead
	// Dependency marks the region as sharing blocks with another data region.
	Dependency *model.DataDependency
	// Version is the data format version. Only 0 is supported.
	Version uint64
}

// Core is the storage handle of one log.
//
// A Core starts unbound. Open binds it to an existing pointer pair and Create
// allocates one. Record access requires a bound handle.
type Core struct {
	s *Storage

	mu     sync.Mutex
	dk     model.DiscoveryKey
	hasKey bool
	ptr    model.CorePointer
	state  coreState
}

func newCore(s *Storage, dk *model.DiscoveryKey) *Core {
	c := &Core{
		s:     s,
		ptr:   model.CorePointer{Core: unresolved, Data: unresolved},
		state: stateUnbound,
	}
	if dk != nil {
		c.dk = *dk
		c.hasKey = true
	}
	return c
}

// DiscoveryKey returns the key of the handle. ok is false while an unbound
// default handle has not been resolved.
func (c *Core) DiscoveryKey() (model.DiscoveryKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dk, c.hasKey
}

// Pointer returns the bound pointer pair.
func (c *Core) Pointer() (model.CorePointer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ptr, c.state == stateBound
}

// Bound reports whether the handle is bound.
func (c *Core) Bound() bool {
	_, ok := c.Pointer()
	return ok
}

// Open binds the handle to an existing core and returns its identity records.
// ok is false, with a nil error, when the core does not exist.
func (c *Core) Open(ctx context.Context) (*CoreInfo, bool, error) {
	if err := c.s.checkOpen(); err != nil {
		return nil, false, err
	}

	ok, err := c.resolve(ctx)
	if err != nil || !ok {
		return nil, false, err
	}

	info, err := c.CoreInfo(ctx)
	if err != nil {
		return nil, false, err
	}

	return info, true, nil
}

// resolve moves the handle from unbound to bound when its pointer exists.
func (c *Core) resolve(ctx context.Context) (bool, error) {
	c.mu.Lock()
	switch c.state {
	case stateBound:
		c.mu.Unlock()
		return true, nil
	case stateClosed:
		c.mu.Unlock()
		return false, ErrClosed
	}
	c.state = stateResolving
	dk, hasKey := c.dk, c.hasKey
	c.mu.Unlock()

	dk, ptr, found, err := c.lookup(ctx, dk, hasKey)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateResolving {
		// Bound or closed concurrently.
		return c.state == stateBound, nil
	}

	if err != nil || !found {
		c.state = stateUnbound
		return false, err
	}

	c.bind(dk, ptr)

	return true, nil
}

func (c *Core) lookup(ctx context.Context, dk model.DiscoveryKey, hasKey bool) (model.DiscoveryKey, model.CorePointer, bool, error) {
	if !hasKey {
		def, ok, err := c.s.DefaultDiscoveryKey(ctx)
		if err != nil || !ok {
			return dk, model.CorePointer{}, false, err
		}
		dk = def
	}

	ptr, ok, err := c.s.Pointer(ctx, dk)

	return dk, ptr, ok, err
}

// bind must be called with c.mu held.
func (c *Core) bind(dk model.DiscoveryKey, ptr model.CorePointer) {
	c.dk = dk
	c.hasKey = true
	c.ptr = ptr
	c.state = stateBound
}

// Create allocates storage for a new core. It returns false, with a nil error,
// when the core already exists; nothing is written in that case.
//
// Create holds the storage write lock across the whole sequence, so creations
// on one Storage are serialized even for unrelated discovery keys.
func (c *Core) Create(ctx context.Context, opts CreateOptions) (created bool, err error) {
	start := time.Now()

	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	var (
		dk  model.DiscoveryKey
		ptr model.CorePointer
	)

	defer func() {
		c.s.metrics.RecordCreate(time.Since(start), created, err)
		c.s.logger.LogCreate(ctx, dk, ptr, created, err)
	}()

	if err := c.s.checkOpen(); err != nil {
		return false, err
	}

	// An existing core wins over the options, whatever key they carry.
	ok, err := c.resolve(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		adopted, err := c.adoptKey(opts.DiscoveryKey)
		if err != nil {
			return false, err
		}
		if adopted {
			if ok, err = c.resolve(ctx); err != nil {
				return false, err
			}
		}
	}

	c.mu.Lock()
	dk, hasKey := c.dk, c.hasKey
	if ok {
		ptr = c.ptr
	}
	c.mu.Unlock()

	if ok {
		return false, nil
	}

	switch {
	case !hasKey:
		return false, ErrMissingDiscoveryKey
	case len(opts.Key) == 0:
		return false, ErrMissingKey
	case opts.Version != 0:
		return false, fmt.Errorf("%w: %d", ErrUnsupportedVersion, opts.Version)
	}

	ptr, info, err := c.s.allocate(ctx)
	if err != nil {
		return false, err
	}

	_, hasDefault, err := c.s.defaultKey(ctx, c.s.engine)
	if err != nil {
		return false, err
	}

	b := c.s.newWriteBatch(ptr)
	b.setDirectory(dk, ptr, info, !hasDefault)
	b.SetAuth(model.CoreAuth{Key: opts.Key, Manifest: opts.Manifest})
	if opts.KeyPair != nil {
		b.SetLocalKeyPair(*opts.KeyPair)
	}
	if opts.EncryptionKey != nil {
		b.SetEncryptionKey(opts.EncryptionKey)
	}
	if opts.Head != nil {
		b.SetHead(*opts.Head)
	}
	if opts.Dependency != nil {
		b.SetDependency(*opts.Dependency)
	}
	b.SetDataInfo(model.DataInfo{Version: opts.Version})

	if err := b.flush(ctx, true); err != nil {
		return false, fmt.Errorf("create %s: %w", dk, err)
	}

	c.s.pointers.Set(dk, ptr)

	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return true, nil
	}
	c.bind(dk, ptr)
	c.mu.Unlock()

	return true, nil
}

// adoptKey gives a keyless handle the discovery key from the options. It
// reports whether the handle's key changed.
func (c *Core) adoptKey(dk *model.DiscoveryKey) (bool, error) {
	if dk == nil {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasKey {
		if c.dk != *dk {
			return false, fmt.Errorf("%w: handle %s, options %s", ErrDiscoveryKeyMismatch, c.dk, dk)
		}
		return false, nil
	}

	c.dk = *dk
	c.hasKey = true

	return true, nil
}

// Close marks the handle closed. It does not touch stored records.
func (c *Core) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = stateClosed
	c.ptr = model.CorePointer{Core: unresolved, Data: unresolved}

	return nil
}

// bound returns the pointer pair or the reason the handle cannot be used.
func (c *Core) bound() (model.CorePointer, error) {
	if err := c.s.checkOpen(); err != nil {
		return model.CorePointer{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateBound:
		return c.ptr, nil
	case stateClosed:
		return model.CorePointer{}, ErrClosed
	default:
		return model.CorePointer{}, ErrUnbound
	}
}

// CreateReadBatch returns a read batch scoped to the core.
func (c *Core) CreateReadBatch() (*ReadBatch, error) {
	ptr, err := c.bound()
	if err != nil {
		return nil, err
	}
	return c.s.newReadBatch(ptr), nil
}

// CreateWriteBatch returns a write batch scoped to the core.
func (c *Core) CreateWriteBatch() (*WriteBatch, error) {
	ptr, err := c.bound()
	if err != nil {
		return nil, err
	}
	return c.s.newWriteBatch(ptr), nil
}

// CoreInfo reads the four identity records from one snapshot.
func (c *Core) CoreInfo(ctx context.Context) (*CoreInfo, error) {
	rb, err := c.CreateReadBatch()
	if err != nil {
		return nil, err
	}

	auth := rb.GetAuth()
	kp := rb.GetLocalKeyPair()
	ek := rb.GetEncryptionKey()
	head := rb.GetHead()

	if err := rb.Flush(ctx); err != nil {
		return nil, err
	}

	info := &CoreInfo{}

	if v, ok, err := auth.Get(); err != nil {
		return nil, err
	} else if ok {
		info.Auth = &v
	}

	if v, ok, err := kp.Get(); err != nil {
		return nil, err
	} else if ok {
		info.KeyPair = &v
	}

	if v, ok, err := ek.Get(); err != nil {
		return nil, err
	} else if ok {
		info.EncryptionKey = v
	}

	if v, ok, err := head.Get(); err != nil {
		return nil, err
	} else if ok {
		info.Head = &v
	}

	return info, nil
}

// readOne runs a single read through an ephemeral batch.
func readOne[T any](ctx context.Context, c *Core, get func(*ReadBatch) *Pending[T]) (T, bool, error) {
	rb, err := c.CreateReadBatch()
	if err != nil {
		var zero T
		return zero, false, err
	}

	p := get(rb)
	rb.TryFlush(ctx)

	return p.Get()
}

// Head returns the current head.
func (c *Core) Head(ctx context.Context) (model.CoreHead, bool, error) {
	return readOne(ctx, c, (*ReadBatch).GetHead)
}

// Auth returns the core's public identity.
func (c *Core) Auth(ctx context.Context) (model.CoreAuth, bool, error) {
	return readOne(ctx, c, (*ReadBatch).GetAuth)
}

// LocalKeyPair returns the local signing material.
func (c *Core) LocalKeyPair(ctx context.Context) (model.KeyPair, bool, error) {
	return readOne(ctx, c, (*ReadBatch).GetLocalKeyPair)
}

// EncryptionKey returns the stored encryption key.
func (c *Core) EncryptionKey(ctx context.Context) ([]byte, bool, error) {
	return readOne(ctx, c, (*ReadBatch).GetEncryptionKey)
}

// DataInfo returns the data region descriptor.
func (c *Core) DataInfo(ctx context.Context) (model.DataInfo, bool, error) {
	return readOne(ctx, c, (*ReadBatch).GetDataInfo)
}

// Dependency returns the data dependency, if any.
func (c *Core) Dependency(ctx context.Context) (model.DataDependency, bool, error) {
	return readOne(ctx, c, (*ReadBatch).GetDependency)
}

// Hints returns the stored data hints.
func (c *Core) Hints(ctx context.Context) (model.DataHints, bool, error) {
	return readOne(ctx, c, (*ReadBatch).GetHints)
}

// UserData returns the user data value stored under key.
func (c *Core) UserData(ctx context.Context, key string) ([]byte, bool, error) {
	return readOne(ctx, c, func(rb *ReadBatch) *Pending[[]byte] { return rb.GetUserData(key) })
}

// TreeNode returns the tree node at index. With mustExist a miss returns a
// *NotFoundError instead of ok=false.
func (c *Core) TreeNode(ctx context.Context, index uint64, mustExist bool) (model.TreeNode, bool, error) {
	return readOne(ctx, c, func(rb *ReadBatch) *Pending[model.TreeNode] { return rb.GetTreeNode(index, mustExist) })
}

// HasTreeNode reports whether a tree node is stored at index.
func (c *Core) HasTreeNode(ctx context.Context, index uint64) (bool, error) {
	has, _, err := readOne(ctx, c, func(rb *ReadBatch) *Pending[bool] { return rb.HasTreeNode(index) })
	return has, err
}

// BitfieldPage returns the bitfield page at index.
func (c *Core) BitfieldPage(ctx context.Context, index uint64) ([]byte, bool, error) {
	return readOne(ctx, c, func(rb *ReadBatch) *Pending[[]byte] { return rb.GetBitfieldPage(index) })
}

// Block returns the block at index. With mustExist a miss returns a
// *NotFoundError instead of ok=false.
func (c *Core) Block(ctx context.Context, index uint64, mustExist bool) ([]byte, bool, error) {
	return readOne(ctx, c, func(rb *ReadBatch) *Pending[[]byte] { return rb.GetBlock(index, mustExist) })
}

// HasBlock reports whether a block is stored at index.
func (c *Core) HasBlock(ctx context.Context, index uint64) (bool, error) {
	has, _, err := readOne(ctx, c, func(rb *ReadBatch) *Pending[bool] { return rb.HasBlock(index) })
	return has, err
}
