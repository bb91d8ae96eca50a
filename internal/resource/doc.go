// Package resource bounds the work a backup or restore may do at once.
//
// A Controller governs three resources:
//
//   - Memory: bytes of frames in flight between the snapshot reader, the
//     codec workers and the blob writer (blocking semaphore)
//   - Workers: concurrent compression or decompression jobs
//   - IO: blob store throughput (token bucket)
//
// Usage:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   64 << 20,
//	    MaxWorkers:         4,
//	    IOLimitBytesPerSec: 50 << 20,
//	})
//
//	if err := rc.AcquireMemory(ctx, int64(len(frame))); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(int64(len(frame)))
//
//	w := resource.NewWriter(ctx, blob, rc)
//
// All methods are safe for concurrent use, and a nil *Controller turns
// every method into a no-op.
package resource
