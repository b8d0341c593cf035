package policy

import (
	"context"
	"sync"

	"github.com/pithecene-io/flight/types"
)

// Sink abstracts persistence for policies.
// Implementations may write to storage, forward to a queue, or stub for testing.
//
// WriteChunks is batch-oriented so strict (batch of 1) and buffered policies
// share one interface.
type Sink interface {
	// WriteChunks persists a batch of chunks.
	// Must preserve ordering within the batch.
	// Returns error on failure; caller decides whether to retry or fail.
	WriteChunks(ctx context.Context, chunks []*types.Chunk) error

	// Close releases any resources held by the sink.
	Close() error
}

// StubSink is a test sink that accepts writes without persisting.
// Tracks write statistics for test assertions.
type StubSink struct {
	mu sync.Mutex

	// ChunksWritten is the total count of chunks written.
	ChunksWritten int64
	// Batches is the number of WriteChunks calls that succeeded.
	Batches int64
	// Closed indicates whether Close was called.
	Closed bool

	// Written stores all written chunks for inspection.
	Written []*types.Chunk

	// ErrorOnWrite, if non-nil, is returned by WriteChunks.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{Written: make([]*types.Chunk, 0)}
}

// WriteChunks records the chunks without persisting.
func (s *StubSink) WriteChunks(_ context.Context, chunks []*types.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.Batches++
	s.ChunksWritten += int64(len(chunks))
	s.Written = append(s.Written, chunks...)
	return nil
}

// SetError sets the error returned by later writes. Nil clears it.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	s.ErrorOnWrite = err
	s.mu.Unlock()
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		ChunksWritten: s.ChunksWritten,
		Batches:       s.Batches,
		Closed:        s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	ChunksWritten int64
	Batches       int64
	Closed        bool
}
