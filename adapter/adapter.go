// Package adapter defines the notification boundary for finished streams.
//
// Adapters publish a StreamCompletedEvent to a downstream system once a
// stream has been decoded and persisted. Payloads are JSON.
package adapter

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/pithecene-io/flight/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventTypeStreamCompleted is the only event type adapters publish.
const EventTypeStreamCompleted = "stream_completed"

// Stream outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeFramingError = "framing_error"
	OutcomeIncomplete   = "incomplete"
	OutcomePolicyError  = "policy_error"
	OutcomeCanceled     = "canceled"
	OutcomeIOError      = "io_error"
)

// StreamCompletedEvent is the payload published when a stream finishes.
type StreamCompletedEvent struct {
	ContractVersion string           `json:"contract_version"`
	EventType       string           `json:"event_type"`
	StreamID        string           `json:"stream_id"`
	Source          string           `json:"source"`
	Day             string           `json:"day"`
	Outcome         string           `json:"outcome"`
	StoragePath     string           `json:"storage_path,omitempty"`
	Timestamp       string           `json:"timestamp"` // RFC 3339
	ChunkCount      int64            `json:"chunk_count"`
	ByKind          map[string]int64 `json:"by_kind,omitempty"`
	DurationMs      int64            `json:"duration_ms"`
}

// NewStreamCompletedEvent fills the fixed fields of an event.
func NewStreamCompletedEvent(streamID, source, day, outcome string, finishedAt time.Time, duration time.Duration) *StreamCompletedEvent {
	return &StreamCompletedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       EventTypeStreamCompleted,
		StreamID:        streamID,
		Source:          source,
		Day:             day,
		Outcome:         outcome,
		Timestamp:       finishedAt.UTC().Format(time.RFC3339),
		DurationMs:      duration.Milliseconds(),
	}
}

// Marshal encodes an event as JSON.
func Marshal(event *StreamCompletedEvent) ([]byte, error) {
	return json.Marshal(event)
}

// Unmarshal decodes a JSON event.
func Unmarshal(data []byte) (*StreamCompletedEvent, error) {
	var event StreamCompletedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Adapter publishes stream completion events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation.
	Publish(ctx context.Context, event *StreamCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// DefaultBackoff is the delay before the first retry. It doubles per attempt.
const DefaultBackoff = 500 * time.Millisecond

// Retry calls fn up to 1+retries times, sleeping base, 2*base, 4*base...
// between attempts. It stops early when permanent reports true for an error.
// name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, base time.Duration, permanent func(error) bool, fn func(context.Context) error) error {
	attempts := 1 + retries
	var lastErr error

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(base << uint(i-1)):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
