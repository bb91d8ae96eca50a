package corestore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for caller errors such as a missing core key.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a record requested with mustExist is absent.
	ErrNotFound = errors.New("not found")

	// ErrMissingKey is returned by Create when no core key is given.
	ErrMissingKey = fmt.Errorf("%w: core key is required", ErrInvalidArgument)

	// ErrMissingDiscoveryKey is returned by Create when no discovery key can be resolved.
	ErrMissingDiscoveryKey = fmt.Errorf("%w: discovery key is required", ErrInvalidArgument)

	// ErrDiscoveryKeyMismatch is returned by Create when the handle and the
	// options name different discovery keys.
	ErrDiscoveryKeyMismatch = fmt.Errorf("%w: discovery key mismatch", ErrInvalidArgument)

	// ErrUnsupportedVersion is returned for a DataInfo version other than 0.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported data version", ErrInvalidArgument)

	// ErrUnbound is returned when a core handle is used before Open or Create succeeded.
	ErrUnbound = errors.New("core is not bound")

	// ErrClosed is returned when the storage or a core handle is used after Close.
	ErrClosed = errors.New("storage is closed")

	// ErrBatchFlushed is returned when a batch is used after Flush, TryFlush or Discard.
	ErrBatchFlushed = errors.New("batch already flushed")

	// ErrNotFlushed is returned when a pending read is resolved before its batch was flushed.
	ErrNotFlushed = errors.New("batch not flushed")

	// ErrCorrupt is returned when a stored value cannot be decoded.
	ErrCorrupt = errors.New("corrupt record")
)

// NotFoundError reports a missing indexed record.
// It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Kind  string
	Index uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d: not found", e.Kind, e.Index)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CorruptError reports a stored value that failed to decode.
//
// The decoding error can be accessed via errors.Unwrap.
type CorruptError struct {
	Kind  string
	Key   []byte
	cause error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%s at %x: corrupt record: %v", e.Kind, e.Key, e.cause)
}

func (e *CorruptError) Unwrap() error { return e.cause }

// Is reports whether target is ErrCorrupt.
func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

func corrupt(kind string, key []byte, err error) error {
	return &CorruptError{Kind: kind, Key: append([]byte(nil), key...), cause: err}
}
