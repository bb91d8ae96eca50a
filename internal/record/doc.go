// Package record encodes the values stored under corestore keys.
//
// Values use a compact little-endian layout: unsigned integers take one byte
// up to 0xfc and otherwise a tag byte (0xfd, 0xfe, 0xff) followed by a 16, 32
// or 64 bit little-endian word. Buffers are a length followed by raw bytes and
// hashes are 32 raw bytes. Unlike keys, values need not sort.
package record
