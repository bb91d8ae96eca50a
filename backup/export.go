package backup

import (
	"bytes"
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

// frame is one unit of work in the ordered codec pipelines.
type frame struct {
	in   []byte
	out  []byte
	mem  int64
	err  error
	done chan struct{}
}

func newFrame(in []byte, ctrl *resource.Controller) *frame {
	mem := int64(len(in))
	if l := ctrl.MemoryLimit(); l > 0 && mem > l {
		mem = l
	}
	return &frame{in: in, mem: mem, done: make(chan struct{})}
}

// dispatch reserves memory and a worker for f, queues it in order and runs
// work on the group. The writer side releases f.mem.
func dispatch(ctx context.Context, g *errgroup.Group, ctrl *resource.Controller, ordered chan<- *frame, f *frame, work func(*frame)) error {
	if err := ctrl.AcquireMemory(ctx, f.mem); err != nil {
		return err
	}
	if err := ctrl.AcquireWorker(ctx); err != nil {
		ctrl.ReleaseMemory(f.mem)
		return err
	}

	select {
	case ordered <- f:
	case <-ctx.Done():
		ctrl.ReleaseWorker()
		ctrl.ReleaseMemory(f.mem)
		return ctx.Err()
	}

	g.Go(func() error {
		defer close(f.done)
		defer ctrl.ReleaseWorker()
		work(f)
		return nil
	})
	return nil
}

// await blocks until f is processed.
func await(ctx context.Context, f *frame) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Export streams a point-in-time snapshot of s into store and returns the
// written manifest. Unless WithoutCommit is set, CURRENT is updated to the
// new manifest after the data blob and manifest are durable. On failure the
// partial data blob is discarded and CURRENT is left untouched.
func Export(ctx context.Context, s *corestore.Storage, store blobstore.Store, optFns ...Option) (*Manifest, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	start := o.now()
	name := o.name
	if name == "" {
		name = defaultName(start)
	}

	var (
		m   *Manifest
		err error
	)
	began := time.Now()
	defer func() {
		var entries, size int64
		if m != nil {
			entries, size = m.Entries, m.DataBytes
		}
		s.Metrics().RecordBackup(corestore.BackupExport, entries, size, time.Since(began), err)
		s.Logger().LogBackup(ctx, corestore.BackupExport, name, entries, size, err)
	}()

	m, err = export(ctx, s, store, name, start, &o)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func export(ctx context.Context, s *corestore.Storage, store blobstore.Store, name string, created time.Time, o *options) (*Manifest, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: snapshot: %w", err)
	}
	defer func() { _ = snap.Close() }()

	w, err := store.Create(ctx, dataName(name))
	if err != nil {
		return nil, fmt.Errorf("backup: create data blob: %w", err)
	}

	m := &Manifest{
		Format:      FormatVersion,
		Name:        name,
		Data:        dataName(name),
		CreatedAt:   created.UTC(),
		Compression: o.compression.String(),
		FrameSize:   o.frameSize,
	}

	if err := writeFrames(ctx, snap, w, m, o); err != nil {
		_ = blobstore.Abort(ctx, w)
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("backup: close data blob: %w", err)
	}

	doc, err := o.manifestCodec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("backup: encode manifest: %w", err)
	}
	manifest := ManifestName(name, o.manifestCodec)
	if err := store.Put(ctx, manifest, doc); err != nil {
		return nil, fmt.Errorf("backup: write manifest: %w", err)
	}

	if o.commit {
		if err := store.Put(ctx, blobstore.CurrentName, []byte(manifest)); err != nil {
			return nil, fmt.Errorf("backup: commit: %w", err)
		}
	}
	return m, nil
}

// writeFrames runs the export pipeline: one goroutine scans the snapshot
// into frames, workers compress them, and a writer appends them in scan
// order.
func writeFrames(ctx context.Context, snap kv.Snapshot, w io.Writer, m *Manifest, o *options) error {
	ctrl := o.controller()
	g, gctx := errgroup.WithContext(ctx)

	out := hash.NewWriter(resource.NewWriter(gctx, w, ctrl))
	ordered := make(chan *frame, 2*ctrl.Workers())
	encode := func(f *frame) {
		f.out, f.err = encodeFrame(f.in, o.compression)
	}

	dkeys := keys.AppendTop(nil, keys.DiscoveryKeys)

	g.Go(func() error {
		defer close(ordered)

		it, err := snap.NewIterator(gctx, kv.Range{})
		if err != nil {
			return err
		}
		defer func() { _ = it.Close() }()

		buf := make([]byte, 0, o.frameSize)
		for it.Next() {
			k, v := it.Key(), it.Value()
			if len(buf) > 0 && len(buf)+entrySize(k, v) > o.frameSize {
				if err := dispatch(gctx, g, ctrl, ordered, newFrame(buf, ctrl), encode); err != nil {
					return err
				}
				buf = make([]byte, 0, o.frameSize)
			}
			buf = appendEntry(buf, k, v)
			m.Entries++
			m.RawBytes += int64(len(k) + len(v))
			if bytes.HasPrefix(k, dkeys) {
				m.Cores++
			}
		}
		if err := it.Err(); err != nil {
			return err
		}
		if len(buf) > 0 {
			return dispatch(gctx, g, ctrl, ordered, newFrame(buf, ctrl), encode)
		}
		return nil
	})

	g.Go(func() error {
		if _, err := out.Write(appendFileHeader(nil)); err != nil {
			return err
		}
		for f := range ordered {
			if err := await(gctx, f); err != nil {
				return err
			}
			if _, err := out.Write(f.out); err != nil {
				return err
			}
			ctrl.ReleaseMemory(f.mem)
			m.Frames++
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("backup: export: %w", err)
	}

	m.DataBytes = out.Len()
	m.Checksum = out.Sum32()
	return nil
}
