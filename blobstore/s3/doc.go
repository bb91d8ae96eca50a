// Package s3 provides Amazon S3 implementations of blobstore.Store.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	store := s3store.NewStore(client, "my-bucket", "corestore/backups/")
//
//	// Optional: atomic CURRENT commits through DynamoDB.
//	commits := s3store.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg),
//	    "corestore-backups", "s3://my-bucket/corestore/backups/")
//
// # Features
//
//   - Range reads for restore
//   - Streaming multipart uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - Compare-and-swap commits of the CURRENT pointer (DDBCommitStore)
package s3
