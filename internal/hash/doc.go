// Package hash provides the CRC32-Castagnoli checksums used for backup
// frames, whole backup blobs and S3 upload integrity headers.
//
// Frames are checked one-shot:
//
//	sum := hash.CRC32C(payload)
//
// Blobs are digested while they stream:
//
//	w := hash.NewWriter(blob)
//	// ... write frames ...
//	m.DataBytes, m.Checksum = w.Len(), w.Sum32()
//
// Go's hash/crc32 uses SSE4.2 or the ARM CRC extension when available.
package hash
