package ingest

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/flight/adapter"
	"github.com/pithecene-io/flight/flight"
)

// Process exit codes for a decode run.
const (
	ExitCodeSuccess       = 0 // every row decoded and persisted
	ExitCodeFramingError  = 1 // malformed or truncated stream
	ExitCodeIOError       = 2 // input, export or argument failure
	ExitCodePolicyFailure = 3 // persistence failed
)

// Outcome is the classified result of one stream.
type Outcome struct {
	// Status is one of the adapter.Outcome* values.
	Status string `json:"status"`
	// Message is a human readable summary.
	Message string `json:"message"`
}

// DetermineOutcome classifies the error returned by Engine.Run.
func DetermineOutcome(err error) Outcome {
	if err == nil {
		return Outcome{Status: adapter.OutcomeSuccess, Message: "stream decoded successfully"}
	}

	var ingErr *IngestionError
	if !errors.As(err, &ingErr) {
		return Outcome{Status: adapter.OutcomeIOError, Message: err.Error()}
	}

	switch ingErr.Kind {
	case IngestionErrorStream:
		if errors.Is(err, flight.ErrIncompleteRow) {
			return Outcome{Status: adapter.OutcomeIncomplete, Message: err.Error()}
		}
		return Outcome{Status: adapter.OutcomeFramingError, Message: err.Error()}
	case IngestionErrorPolicy:
		return Outcome{Status: adapter.OutcomePolicyError, Message: err.Error()}
	case IngestionErrorCanceled:
		return Outcome{Status: adapter.OutcomeCanceled, Message: fmt.Sprintf("stream canceled: %v", err)}
	default:
		return Outcome{Status: adapter.OutcomeIOError, Message: err.Error()}
	}
}

// ExitCode maps an outcome status to a process exit code.
func ExitCode(status string) int {
	switch status {
	case adapter.OutcomeSuccess:
		return ExitCodeSuccess
	case adapter.OutcomeFramingError, adapter.OutcomeIncomplete:
		return ExitCodeFramingError
	case adapter.OutcomePolicyError:
		return ExitCodePolicyFailure
	default:
		return ExitCodeIOError
	}
}
