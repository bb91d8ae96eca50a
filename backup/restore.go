package backup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/corestore"
	"github.com/hupe1980/corestore/blobstore"
	"github.com/hupe1980/corestore/internal/hash"
	"github.com/hupe1980/corestore/internal/keys"
	"github.com/hupe1980/corestore/internal/resource"
	"github.com/hupe1980/corestore/kv"
)

const readBufferSize = 256 << 10

// Restore replaces the contents of s with a backup from store. It restores
// the manifest named by WithManifest, or the one CURRENT points at.
//
// The data blob is checksummed before anything is deleted, so a damaged
// backup leaves s untouched. With WithoutVerify a damaged frame is only
// detected while applying, after the store was cleared.
func Restore(ctx context.Context, s *corestore.Storage, store blobstore.Store, optFns ...Option) (*Manifest, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	var (
		m    *Manifest
		name = o.manifest
		err  error
	)
	began := time.Now()
	defer func() {
		var entries, size int64
		if m != nil {
			entries, size = m.Entries, m.DataBytes
		}
		s.Metrics().RecordBackup(corestore.BackupRestore, entries, size, time.Since(began), err)
		s.Logger().LogBackup(ctx, corestore.BackupRestore, name, entries, size, err)
	}()

	if name == "" {
		name, err = Current(ctx, store)
		if err != nil {
			return nil, err
		}
	}

	m, err = restore(ctx, s, store, name, &o)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func restore(ctx context.Context, s *corestore.Storage, store blobstore.Store, manifest string, o *options) (*Manifest, error) {
	m, err := ReadManifest(ctx, store, manifest)
	if err != nil {
		return nil, err
	}

	blob, err := store.Open(ctx, m.Data)
	if err != nil {
		return nil, fmt.Errorf("backup: open data blob: %w", err)
	}
	defer func() { _ = blob.Close() }()

	if blob.Size() != m.DataBytes {
		return nil, fmt.Errorf("%w: data blob is %d bytes, manifest says %d", ErrCorrupt, blob.Size(), m.DataBytes)
	}

	ctrl := o.controller()
	if o.verify {
		if err := verifyBlob(ctx, blob, m, ctrl); err != nil {
			return nil, err
		}
	}

	err = s.Exclusive(ctx, func(ctx context.Context, engine kv.Engine) error {
		if err := clearEngine(ctx, engine); err != nil {
			return err
		}
		return applyFrames(ctx, engine, blob, m, ctrl)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// verifyBlob streams the data blob and compares its checksum with m.
func verifyBlob(ctx context.Context, blob blobstore.Blob, m *Manifest, ctrl *resource.Controller) error {
	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return fmt.Errorf("backup: read data blob: %w", err)
	}
	defer func() { _ = rc.Close() }()

	d, err := hash.ReadFrom(resource.NewReader(ctx, rc, ctrl), make([]byte, readBufferSize))
	if err != nil {
		return fmt.Errorf("backup: read data blob: %w", err)
	}
	if !d.Matches(m.DataBytes, m.Checksum) {
		return fmt.Errorf("%w: data blob checksum mismatch", ErrCorrupt)
	}
	return nil
}

func clearEngine(ctx context.Context, engine kv.Engine) error {
	b := engine.NewBatch()
	defer func() { _ = b.Close() }()

	if err := b.DeleteRange(keys.AppendTop(nil, keys.StorageInfo), []byte{keys.End}); err != nil {
		return err
	}
	if err := b.Commit(ctx, kv.Sync); err != nil {
		return fmt.Errorf("backup: clear: %w", err)
	}
	return nil
}

// applyFrames decodes frames on the workers and writes one engine batch per
// frame in blob order. Only the last batch is synced.
func applyFrames(ctx context.Context, engine kv.Engine, blob blobstore.Blob, m *Manifest, ctrl *resource.Controller) error {
	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return fmt.Errorf("backup: read data blob: %w", err)
	}
	defer func() { _ = rc.Close() }()

	g, gctx := errgroup.WithContext(ctx)
	br := bufio.NewReaderSize(resource.NewReader(gctx, rc, ctrl), readBufferSize)
	ordered := make(chan *frame, 2*ctrl.Workers())

	var (
		frames  int
		entries int64
	)

	g.Go(func() error {
		defer close(ordered)

		if err := readFileHeader(br); err != nil {
			return err
		}

		remaining := blob.Size() - fileHeaderSize
		var hb [frameHeaderSize]byte
		for remaining > 0 {
			if remaining < frameHeaderSize {
				return fmt.Errorf("%w: truncated frame header", ErrCorrupt)
			}
			if _, err := io.ReadFull(br, hb[:]); err != nil {
				return fmt.Errorf("%w: frame header: %v", ErrCorrupt, err)
			}
			h, err := parseFrameHeader(hb[:])
			if err != nil {
				return err
			}
			remaining -= frameHeaderSize
			if int64(h.stored) > remaining {
				return fmt.Errorf("%w: frame overruns data blob", ErrCorrupt)
			}

			stored := make([]byte, h.stored)
			if _, err := io.ReadFull(br, stored); err != nil {
				return fmt.Errorf("%w: frame body: %v", ErrCorrupt, err)
			}
			remaining -= int64(h.stored)

			f := newFrame(stored, ctrl)
			if raw := int64(h.raw); raw > f.mem {
				f.mem = raw
				if l := ctrl.MemoryLimit(); l > 0 && f.mem > l {
					f.mem = l
				}
			}
			err = dispatch(gctx, g, ctrl, ordered, f, func(f *frame) {
				f.out, f.err = decodeFrame(h, f.in)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	g.Go(func() error {
		var pending kv.Batch
		defer func() {
			if pending != nil {
				_ = pending.Close()
			}
		}()

		for f := range ordered {
			if err := await(gctx, f); err != nil {
				return err
			}

			if pending != nil {
				if err := pending.Commit(gctx, kv.NoSync); err != nil {
					return err
				}
				_ = pending.Close()
				pending = nil
			}

			b := engine.NewBatch()
			pending = b
			n, err := decodeEntries(f.out, b.Set)
			if err != nil {
				return err
			}
			entries += int64(n)
			frames++
			ctrl.ReleaseMemory(f.mem)
		}

		if pending != nil {
			return pending.Commit(gctx, kv.Sync)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("backup: restore: %w", err)
	}

	if frames != m.Frames || entries != m.Entries {
		return fmt.Errorf("%w: restored %d frames and %d entries, manifest says %d and %d",
			ErrCorrupt, frames, entries, m.Frames, m.Entries)
	}
	return nil
}
