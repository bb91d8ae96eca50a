// Package corestore is the persistent storage layer for replicated,
// verifiable append-only logs ("cores").
//
// Many cores share one ordered key-value engine. Each core is addressed by a
// 32-byte discovery key that resolves, through a pointer directory, to a pair
// of small integers: a core pointer for identity records and a data pointer
// for bulk records (tree nodes, bitfield pages, blocks, user data).
//
// # Quick Start
//
//	s, _ := corestore.Open("./data")
//	defer s.Close()
//
//	core := s.Get(dk)
//	created, _ := core.Create(ctx, corestore.CreateOptions{Key: publicKey})
//
//	wb, _ := core.CreateWriteBatch()
//	wb.PutBlock(0, []byte("hello"))
//	wb.PutTreeNode(model.TreeNode{Index: 0, Size: 5, Hash: h})
//	if err := wb.Flush(ctx); err != nil {
//	    // nothing was applied
//	}
//
//	block, ok, _ := core.Block(ctx, 0, false)
//
// # Key Layout
//
// Every key is [namespace][pointer][record type][index or string key], with
// integers in an order-preserving encoding (see internal/keys). All records of
// one type for one pointer form a contiguous byte range, so range scans return
// ascending index order and range deletes are single engine operations.
//
// # Batches
//
// ReadBatch queues reads and resolves them from one engine snapshot on Flush.
// WriteBatch buffers writes and commits them atomically on Flush. TryFlush is
// the best-effort variant of both: it never returns an error. For writes this
// means a failed commit silently drops the batch from the caller's point of
// view; the failure is still logged and counted.
//
// # Concurrency
//
// Create serializes on a per-Storage lock, including creations of unrelated
// cores. Reads and writes to bound cores are not serialized by this package;
// concurrent writers to the same core must coordinate themselves. Batches are
// single-owner and single-use.
package corestore
