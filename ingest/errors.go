package ingest

import (
	"errors"
	"fmt"
)

// IngestionErrorKind classifies ingestion errors for outcome determination.
type IngestionErrorKind int

const (
	// IngestionErrorStream is a malformed stream: a framing error, or input
	// that ended mid-row.
	IngestionErrorStream IngestionErrorKind = iota
	// IngestionErrorPolicy is a persistence failure reported by the policy.
	IngestionErrorPolicy
	// IngestionErrorCanceled is context cancellation.
	IngestionErrorCanceled
	// IngestionErrorRead is an I/O failure reading the input.
	IngestionErrorRead
	// IngestionErrorExport is a failure writing the chunk export.
	IngestionErrorExport
)

func (k IngestionErrorKind) String() string {
	switch k {
	case IngestionErrorStream:
		return "stream"
	case IngestionErrorPolicy:
		return "policy"
	case IngestionErrorCanceled:
		return "canceled"
	case IngestionErrorRead:
		return "read"
	case IngestionErrorExport:
		return "export"
	default:
		return fmt.Sprintf("IngestionErrorKind(%d)", int(k))
	}
}

// IngestionError is returned by Engine.Run.
type IngestionError struct {
	Kind IngestionErrorKind
	Err  error
}

func (e *IngestionError) Error() string {
	return e.Err.Error()
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

func kindOf(err error) (IngestionErrorKind, bool) {
	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		return ingErr.Kind, true
	}
	return 0, false
}

// IsStreamError returns true if the error is a framing or truncation error.
func IsStreamError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == IngestionErrorStream
}

// IsPolicyError returns true if the error is a policy failure.
func IsPolicyError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == IngestionErrorPolicy
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == IngestionErrorCanceled
}

// IsReadError returns true if reading the input failed.
func IsReadError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == IngestionErrorRead
}
