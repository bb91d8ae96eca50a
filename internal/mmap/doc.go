// Package mmap provides read-only memory-mapped file access.
//
// The local blob store maps backup data files so restore can walk frames
// without copying them through read buffers.
//
//	m, err := mmap.Open("backup-0001.data")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessSequential)
//	frame, err := m.Slice(off, n)
//
// Unix uses mmap(2) and madvise(2). Windows uses CreateFileMapping and
// MapViewOfFile; Advise is a no-op there.
//
// A Mapping is safe for concurrent reads. Close is idempotent, but slices
// obtained from Bytes or Slice must not be used after it returns.
package mmap
