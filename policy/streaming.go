package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/flight/log"
	"github.com/pithecene-io/flight/types"
)

// StreamingConfig configures a StreamingPolicy.
type StreamingConfig struct {
	// FlushCount flushes once this many chunks are pending. Zero disables it.
	FlushCount int

	// FlushInterval flushes pending chunks on a ticker. Zero disables it.
	FlushInterval time.Duration

	Logger *log.Logger
}

// FlushTrigger names the cause of a flush.
type FlushTrigger string

// Flush triggers.
const (
	FlushTriggerCount       FlushTrigger = "count"
	FlushTriggerInterval    FlushTrigger = "interval"
	FlushTriggerError       FlushTrigger = "error"
	FlushTriggerTermination FlushTrigger = "termination"
)

// ErrStreamingInvalidConfig is returned when neither flush trigger is set.
var ErrStreamingInvalidConfig = errors.New("invalid streaming config: at least one of FlushCount or FlushInterval must be set")

// pending is the batch not yet handed to the sink.
type pending struct {
	chunks []*types.Chunk
	bytes  int64
}

func (b *pending) add(c *types.Chunk) {
	b.chunks = append(b.chunks, c)
	b.bytes += c.SizeBytes()
}

func (b *pending) take() []*types.Chunk {
	out := b.chunks
	b.chunks, b.bytes = nil, 0
	return out
}

// restore puts a failed batch back in front of anything ingested since.
func (b *pending) restore(batch []*types.Chunk) {
	b.chunks = append(batch, b.chunks...)
	b.bytes = 0
	for _, c := range b.chunks {
		b.bytes += c.SizeBytes()
	}
}

// StreamingPolicy persists every chunk in small batches as the stream
// arrives. A batch is written when the count threshold is reached, when
// the interval ticks, when an error row arrives and on Flush. A failed
// write keeps the batch pending for the next trigger.
//
// mu guards the batch and counters; flushMu orders sink writes between
// the ingest path and the interval goroutine.
type StreamingPolicy struct {
	sink   Sink
	config StreamingConfig
	logger *log.Logger

	mu      sync.Mutex
	batch   pending
	stats   *statsRecorder
	flushes map[FlushTrigger]int64

	flushMu sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
	loopDone sync.WaitGroup
}

// NewStreamingPolicy returns a streaming policy, or
// ErrStreamingInvalidConfig when no count or interval trigger is set.
func NewStreamingPolicy(sink Sink, config StreamingConfig) (*StreamingPolicy, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrStreamingInvalidConfig
	}

	p := &StreamingPolicy{
		sink:    sink,
		config:  config,
		logger:  config.Logger,
		stats:   newStatsRecorder(),
		flushes: make(map[FlushTrigger]int64),
		stop:    make(chan struct{}),
	}
	if config.FlushInterval > 0 {
		p.loopDone.Add(1)
		go p.tick(config.FlushInterval)
	}
	return p, nil
}

// IngestChunk queues the chunk and flushes if it completes a batch or is
// an error row.
func (p *StreamingPolicy) IngestChunk(ctx context.Context, chunk *types.Chunk) error {
	p.mu.Lock()
	p.stats.incTotalLocked()
	p.batch.add(chunk)
	p.stats.setBufferSizeLocked(p.batch.bytes)
	full := p.config.FlushCount > 0 && len(p.batch.chunks) >= p.config.FlushCount
	p.mu.Unlock()

	switch {
	case chunk.Kind.IsError():
		return p.flush(ctx, FlushTriggerError)
	case full:
		return p.flush(ctx, FlushTriggerCount)
	}
	return nil
}

// Flush writes whatever is pending.
func (p *StreamingPolicy) Flush(ctx context.Context) error {
	return p.flush(ctx, FlushTriggerTermination)
}

func (p *StreamingPolicy) flush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	p.flushes[trigger]++
	p.stats.incFlushLocked()
	batch := p.batch.take()
	p.stats.setBufferSizeLocked(0)
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	// the sink is written outside mu so ingestion never waits on storage
	err := p.sink.WriteChunks(ctx, batch)

	p.mu.Lock()
	if err != nil {
		p.stats.incErrorsLocked()
		p.batch.restore(batch)
		p.stats.setBufferSizeLocked(p.batch.bytes)
	} else {
		p.stats.incPersistedLocked(int64(len(batch)))
	}
	p.mu.Unlock()

	p.logFlush(trigger, len(batch), err)
	return err
}

// Close stops the ticker, makes a last flush and closes the sink.
func (p *StreamingPolicy) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	p.loopDone.Wait()

	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns a snapshot of counters and pending bytes.
func (p *StreamingPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(p.batch.bytes)
}

// FlushTriggerStats returns how often each trigger fired.
func (p *StreamingPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := map[FlushTrigger]int64{
		FlushTriggerCount:       0,
		FlushTriggerInterval:    0,
		FlushTriggerError:       0,
		FlushTriggerTermination: 0,
	}
	for t, n := range p.flushes {
		out[t] = n
	}
	return out
}

func (p *StreamingPolicy) tick(every time.Duration) {
	defer p.loopDone.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			idle := len(p.batch.chunks) == 0
			p.mu.Unlock()
			if !idle {
				// failures are logged and retried on the next tick
				_ = p.flush(context.Background(), FlushTriggerInterval)
			}
		case <-p.stop:
			return
		}
	}
}

func (p *StreamingPolicy) logFlush(trigger FlushTrigger, chunks int, err error) {
	if p.logger == nil {
		return
	}
	fields := map[string]any{
		"policy":  "streaming",
		"trigger": string(trigger),
		"chunks":  chunks,
	}
	if err != nil {
		fields["error"] = err.Error()
		p.logger.Error("streaming flush failed", fields)
		return
	}
	p.logger.Debug("streaming flush", fields)
}

var _ Policy = (*StreamingPolicy)(nil)
