// Package model defines the records persisted by corestore.
//
// # Identity Types
//
//   - DiscoveryKey: 32-byte external identifier of a log
//   - CorePointer: internal (core, data) pointer pair a discovery key resolves to
//   - StorageInfo: global pointer allocation counters
//
// # Record Types
//
//   - CoreAuth, CoreHead, KeyPair: per-log identity records
//   - DataInfo, DataDependency, DataHints: per-data region metadata
//   - TreeNode, BitfieldPage, Block, UserData: indexed records
//
// The types carry no encoding logic; the byte layout lives in internal/record.
package model
