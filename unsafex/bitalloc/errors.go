package bitalloc

import "errors"

// ErrOutOfSpace is returned when no contiguous run of the requested
// length exists in the allocator's bit range.
var ErrOutOfSpace = errors.New("bitalloc: out of space")

// ErrInvalidLength is returned when Alloc is called with len == 0.
var ErrInvalidLength = errors.New("bitalloc: invalid length")
