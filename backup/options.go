package backup

import (
	"fmt"
	"runtime"
	"time"

	"github.com/hupe1980/corestore/codec"
	"github.com/hupe1980/corestore/internal/resource"
)

// DefaultMemoryLimit bounds the frame bytes in flight during a run.
const DefaultMemoryLimit = 64 << 20

type options struct {
	name          string
	manifest      string
	compression   Compression
	frameSize     int
	concurrency   int
	memoryLimit   int64
	rateLimit     int64
	manifestCodec codec.Codec
	commit        bool
	verify        bool
	now           func() time.Time
}

func defaultOptions() options {
	return options{
		compression:   CompressionZSTD,
		frameSize:     DefaultFrameSize,
		concurrency:   min(runtime.GOMAXPROCS(0), 4),
		memoryLimit:   DefaultMemoryLimit,
		manifestCodec: codec.Default,
		commit:        true,
		verify:        true,
		now:           time.Now,
	}
}

func (o *options) validate() error {
	if o.frameSize <= 0 || o.frameSize > MaxFrameSize {
		return fmt.Errorf("backup: frame size %d out of range (0, %d]", o.frameSize, MaxFrameSize)
	}
	if o.compression > CompressionZSTD {
		return fmt.Errorf("backup: unknown compression %d", o.compression)
	}
	if o.name != "" && !validBackupName(o.name) {
		return fmt.Errorf("backup: invalid name %q", o.name)
	}
	return nil
}

func (o *options) controller() *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes:   o.memoryLimit,
		MaxWorkers:         int64(o.concurrency),
		IOLimitBytesPerSec: o.rateLimit,
	})
}

// Option configures Export and Restore.
type Option func(*options)

// WithName sets the backup name. The default is derived from the current
// time so names sort chronologically.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithManifest makes Restore read the given manifest instead of CURRENT.
func WithManifest(name string) Option {
	return func(o *options) { o.manifest = name }
}

// WithCompression sets the frame codec. Default: CompressionZSTD.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithFrameSize sets the target uncompressed frame size. Default: 1MiB.
func WithFrameSize(n int) Option {
	return func(o *options) { o.frameSize = n }
}

// WithConcurrency sets the number of codec workers.
// Default: min(GOMAXPROCS, 4).
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithMemoryLimit bounds the frame bytes in flight. 0 disables the bound.
func WithMemoryLimit(n int64) Option {
	return func(o *options) { o.memoryLimit = n }
}

// WithRateLimit caps blob store throughput in bytes per second.
// 0 means unlimited.
func WithRateLimit(bytesPerSec int64) Option {
	return func(o *options) { o.rateLimit = bytesPerSec }
}

// WithManifestCodec sets the codec manifests are written with.
func WithManifestCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.manifestCodec = c
		}
	}
}

// WithoutCommit leaves CURRENT untouched after an export.
func WithoutCommit() Option {
	return func(o *options) { o.commit = false }
}

// WithoutVerify skips the whole-blob checksum pass Restore runs before it
// clears the target. Frame checksums are still checked.
func WithoutVerify() Option {
	return func(o *options) { o.verify = false }
}

// WithClock overrides the time source used for default names.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
