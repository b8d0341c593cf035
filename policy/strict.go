package policy

import (
	"context"

	"github.com/pithecene-io/flight/types"
)

// StrictPolicy implements synchronous, unbuffered persistence.
//
//   - No buffering: each chunk is written immediately
//   - No drops: every chunk is persisted
//   - Caller blocks on sink latency
//   - Sink errors fail the stream
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{
		sink:  sink,
		stats: newStatsRecorder(),
	}
}

// IngestChunk writes the chunk immediately to the sink.
func (p *StrictPolicy) IngestChunk(ctx context.Context, chunk *types.Chunk) error {
	p.stats.incTotal()

	if err := p.sink.WriteChunks(ctx, []*types.Chunk{chunk}); err != nil {
		p.stats.incErrors()
		return err
	}

	p.stats.incPersisted(1)
	return nil
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
