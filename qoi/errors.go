package qoi

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by this package wraps one of them.
var (
	// ErrMalformedHeader indicates a bad magic, zero or oversized dimensions,
	// or an unsupported channel count.
	ErrMalformedHeader = errors.New("qoi: malformed header")
	// ErrTruncatedStream indicates the chunk data ended before every pixel was decoded.
	ErrTruncatedStream = errors.New("qoi: truncated stream")
	// ErrInvalidChunkTag indicates a chunk tag that maps to no known chunk kind.
	ErrInvalidChunkTag = errors.New("qoi: invalid chunk tag")
	// ErrInvariantViolation indicates the encoder produced a chunk whose fields
	// do not fit the wire layout. It is always a bug.
	ErrInvariantViolation = errors.New("qoi: invariant violation")
	// ErrInvalidInput indicates a pixel buffer that does not match its header.
	ErrInvalidInput = errors.New("qoi: invalid input")
)

// FormatError reports where in a stream or buffer a failure was detected.
type FormatError struct {
	Kind    error // one of the sentinel errors above
	Offset  int   // byte offset into the stream or pixel buffer
	Message string
}

func (e *FormatError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("%v at offset %d: %s", e.Kind, e.Offset, e.Message)
}

func (e *FormatError) Unwrap() error {
	return e.Kind
}

func newFormatError(kind error, offset int, format string, args ...any) error {
	return &FormatError{
		Kind:    kind,
		Offset:  offset,
		Message: fmt.Sprintf(format, args...),
	}
}
