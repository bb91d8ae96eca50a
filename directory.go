package corestore

import (
	"context"

	"github.com/hupe1980/corestore/internal/keys"
	"github.com/hupe1980/corestore/internal/record"
	"github.com/hupe1980/corestore/kv"
	"github.com/hupe1980/corestore/model"
)

// Pointer resolves dk to its pointer pair.
func (s *Storage) Pointer(ctx context.Context, dk model.DiscoveryKey) (model.CorePointer, bool, error) {
	if err := s.checkOpen(); err != nil {
		return model.CorePointer{}, false, err
	}

	if ptr, ok := s.pointers.Get(dk); ok {
		return ptr, true, nil
	}

	key := keys.AppendDiscoveryKey(nil, dk[:])

	v, ok, err := s.engine.Get(ctx, key)
	if err != nil || !ok {
		return model.CorePointer{}, false, err
	}

	ptr, err := record.DecodeCorePointer(v)
	if err != nil {
		return model.CorePointer{}, false, corrupt("core pointer", key, err)
	}

	// Pointers are immutable once written.
	s.pointers.Set(dk, ptr)

	return ptr, true, nil
}

// DefaultDiscoveryKey returns the discovery key of the first core ever created.
func (s *Storage) DefaultDiscoveryKey(ctx context.Context) (model.DiscoveryKey, bool, error) {
	if err := s.checkOpen(); err != nil {
		return model.DiscoveryKey{}, false, err
	}
	return s.defaultKey(ctx, s.engine)
}

// LocalSeed returns the device-wide seed, if one was stored.
func (s *Storage) LocalSeed(ctx context.Context) ([]byte, bool, error) {
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	return s.engine.Get(ctx, keys.AppendTop(nil, keys.LocalSeed))
}

// SetLocalSeed stores the device-wide seed.
func (s *Storage) SetLocalSeed(ctx context.Context, seed []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	b := s.engine.NewBatch()
	defer b.Close()

	if err := b.Set(keys.AppendTop(nil, keys.LocalSeed), seed); err != nil {
		return err
	}
	return b.Commit(ctx, kv.Sync)
}

func (s *Storage) info(ctx context.Context, r kv.Reader) (model.StorageInfo, bool, error) {
	key := keys.AppendTop(nil, keys.StorageInfo)

	v, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return model.StorageInfo{}, false, err
	}

	info, err := record.DecodeStorageInfo(v)
	if err != nil {
		return model.StorageInfo{}, false, corrupt("storage info", key, err)
	}

	return info, true, nil
}

func (s *Storage) defaultKey(ctx context.Context, r kv.Reader) (model.DiscoveryKey, bool, error) {
	key := keys.AppendTop(nil, keys.DefaultKey)

	v, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return model.DiscoveryKey{}, false, err
	}

	dk, err := model.DiscoveryKeyFromBytes(v)
	if err != nil {
		return model.DiscoveryKey{}, false, corrupt("default key", key, err)
	}

	return dk, true, nil
}

// allocate reserves the next pointer pair. Callers hold s.mu.
func (s *Storage) allocate(ctx context.Context) (model.CorePointer, model.StorageInfo, error) {
	info, _, err := s.info(ctx, s.engine)
	if err != nil {
		return model.CorePointer{}, model.StorageInfo{}, err
	}

	ptr := model.CorePointer{Core: info.Total, Data: info.Free}
	info.Total++
	info.Free++

	return ptr, info, nil
}
