// Package backup exports a Storage into a blob store and restores it.
//
// A backup is two blobs below its name: a framed, checksummed data blob
// holding every key and value of a snapshot in key order, and a manifest
// describing it. Committing a backup points CURRENT at the manifest, so a
// half written backup is never restored by default.
//
// Frames are compressed and decompressed on a bounded worker pool. Memory in
// flight and blob store throughput are capped through the options:
//
//	m, err := backup.Export(ctx, s, store,
//		backup.WithCompression(backup.CompressionLZ4),
//		backup.WithRateLimit(64<<20),
//	)
//
//	_, err = backup.Restore(ctx, s, store)
//
// Any blobstore.Store works as a target. Wrapping an S3 store with
// s3.DDBCommitStore makes the CURRENT update a conditional write.
package backup
