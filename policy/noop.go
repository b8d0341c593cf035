package policy

import (
	"context"

	"github.com/pithecene-io/flight/types"
)

// NoopPolicy accepts chunks without persisting them.
// Used when decoding without storage.
//
// Stats keep the droppable semantics: diagnostic chunks are counted as
// dropped, everything else as persisted.
type NoopPolicy struct {
	stats *statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder()}
}

// IngestChunk accepts the chunk but does not persist it.
func (p *NoopPolicy) IngestChunk(_ context.Context, chunk *types.Chunk) error {
	p.stats.incTotal()
	if IsDroppable(chunk.Kind) {
		p.stats.incDropped(chunk.Kind)
	} else {
		p.stats.incPersisted(1)
	}
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*NoopPolicy)(nil)
