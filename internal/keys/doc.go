// Package keys implements the order-preserving key encoding and the key-space
// schema shared by every record of the store.
//
// # Integer encoding
//
//	n <= 0xfb        [n]
//	n <= 0xffff      [0xfc][uint16 big-endian]
//	n <= 0xffffffff  [0xfd][uint32 big-endian]
//	otherwise        [0xfe][uint64 big-endian]
//
// For a < b, AppendUint(nil, a) sorts strictly before AppendUint(nil, b) under
// bytes.Compare. 0xff never starts an encoded integer, so prefix+0xff is an
// exclusive upper bound of every key below prefix.
//
// # Key layout
//
//	[top][pointer?][sub][index | string?]
//
// Strings are length-prefixed (integer length, then raw bytes) and therefore
// sort shortlex: shorter keys first, equal lengths bytewise.
package keys
