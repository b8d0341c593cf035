package lode

import (
	"context"

	"github.com/pithecene-io/flight/metrics"
	"github.com/pithecene-io/flight/policy"
	"github.com/pithecene-io/flight/types"
)

// InstrumentedSink wraps a policy.Sink and counts write outcomes.
// Every WriteChunks call bumps either lode_write_success or
// lode_write_failure on the collector.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with write metrics.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteChunks delegates to the inner sink.
func (s *InstrumentedSink) WriteChunks(ctx context.Context, chunks []*types.Chunk) error {
	if err := s.inner.WriteChunks(ctx, chunks); err != nil {
		s.collector.IncLodeWriteFailure()
		return err
	}
	s.collector.IncLodeWriteSuccess()
	return nil
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ policy.Sink = (*InstrumentedSink)(nil)
