// Package arena provides the scratch allocator used to encode keys and values.
//
// An Arena is a bump allocator over a single growable buffer. Encoders reserve
// room at the cursor, write forward and receive a Span covering what they
// wrote. When the remaining room is below the worst-case encoding size the
// buffer is replaced wholesale and the cursor starts over at zero; spans into
// the previous buffer stay valid because nothing reuses that memory.
//
// # Ownership
//
// Reset rewinds the cursor over the current buffer, so every span handed out
// before it now aliases memory that the next encode will overwrite. Each Reset
// bumps the arena generation and Span.Bytes refuses to return a span minted in
// an older generation (ErrStaleSpan). Consumers must either copy the bytes out
// (the engine write path does) or keep the arena un-reset until they are done.
//
// # Concurrency
//
// An Arena is owned by exactly one batch and is not safe for concurrent use.
// Pooled arenas are handed out by Get and returned by Put.
package arena
