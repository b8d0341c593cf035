package flight

import (
	"errors"
	"fmt"
)

// Sentinel errors for framing failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrInvalidHexDigit indicates a byte in the id field that is neither a
	// lowercase hex digit nor the ':' separator.
	ErrInvalidHexDigit = errors.New("invalid hex digit in row id")

	// ErrInvalidLengthHeader indicates a malformed length header on a
	// length-framed row (a byte that is neither a hex digit nor ',', or a
	// length above MaxRowLength).
	ErrInvalidLengthHeader = errors.New("invalid row length header")

	// ErrIncompleteRow indicates input ended in the middle of a row.
	ErrIncompleteRow = errors.New("input ended with an incomplete row")
)

// FramingErrorKind classifies framing errors.
type FramingErrorKind int

const (
	// FramingErrorInvalidHexDigit is a bad byte in the id field.
	FramingErrorInvalidHexDigit FramingErrorKind = iota
	// FramingErrorInvalidLength is a bad byte or value in a length header.
	FramingErrorInvalidLength
)

// FramingError is a fatal error raised while framing rows.
// Once returned, the response is poisoned and every later Feed returns it.
type FramingError struct {
	Kind FramingErrorKind
	// Offset is the absolute stream offset of the offending byte.
	Offset int64
	// Byte is the offending byte.
	Byte byte
	// Msg carries extra detail, if any.
	Msg string
}

func (e *FramingError) Error() string {
	detail := fmt.Sprintf("%v: byte %q at offset %d", e.sentinel(), e.Byte, e.Offset)
	if e.Msg != "" {
		return detail + ": " + e.Msg
	}
	return detail
}

// Unwrap returns the sentinel for errors.Is chain traversal.
func (e *FramingError) Unwrap() error {
	return e.sentinel()
}

func (e *FramingError) sentinel() error {
	if e.Kind == FramingErrorInvalidLength {
		return ErrInvalidLengthHeader
	}
	return ErrInvalidHexDigit
}

// IsFatal returns true if this error is fatal (abandon the stream).
// All framing errors are fatal; there is no resync.
func (e *FramingError) IsFatal() bool {
	return true
}

// IsFatal returns true if err is a fatal framing error.
func IsFatal(err error) bool {
	var framingErr *FramingError
	if errors.As(err, &framingErr) {
		return framingErr.IsFatal()
	}
	return false
}

// IncompleteRowError is returned by Finish when input ended mid-row.
type IncompleteRowError struct {
	// ID is the (possibly partial) id of the unfinished row.
	ID string
	// Phase is the framer phase the row was left in.
	Phase Phase
	// Buffered is the number of body bytes held for the row.
	Buffered int
}

func (e *IncompleteRowError) Error() string {
	return fmt.Sprintf("%v: row %s in phase %s with %d buffered bytes",
		ErrIncompleteRow, e.ID, e.Phase, e.Buffered)
}

// Unwrap returns ErrIncompleteRow.
func (e *IncompleteRowError) Unwrap() error {
	return ErrIncompleteRow
}
