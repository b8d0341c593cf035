package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pithecene-io/flight/log"
	"github.com/pithecene-io/flight/types"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferChunks is the maximum number of chunks to buffer.
	// Zero means no limit (use MaxBufferBytes instead).
	MaxBufferChunks int

	// MaxBufferBytes is the maximum buffer size in bytes (estimated via
	// Chunk.SizeBytes). Zero means no limit. At least one limit must be set.
	MaxBufferBytes int64

	// Logger is an optional logger for policy observability.
	// If nil, no logging is emitted.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxBufferChunks: 1000,
		MaxBufferBytes:  10 * 1024 * 1024, // 10 MB
	}
}

// ErrBufferFull is returned when the buffer is full and the chunk is non-droppable.
var ErrBufferFull = errors.New("buffer full: cannot accept non-droppable chunk")

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxBufferChunks or MaxBufferBytes must be set")

// BufferedPolicy implements bounded buffering with drop rules.
//
//   - Bounded buffer with explicit limits
//   - When full, the buffer is flushed to make room
//   - If that flush fails: droppable kinds are dropped, the oldest buffered
//     droppable chunk is evicted for a non-droppable one, and ErrBufferFull
//     is returned when nothing can be evicted
//   - Batch writes on flush, in ingestion order
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu          sync.Mutex // guards buffer state and stats
	buffer      []*types.Chunk
	bufferBytes int64
	stats       *statsRecorder

	// flushMu serializes writes to the sink.
	flushMu sync.Mutex
}

// NewBufferedPolicy creates a new buffered policy.
// Returns error if config is invalid.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferChunks <= 0 && config.MaxBufferBytes <= 0 {
		return nil, ErrInvalidConfig
	}

	return &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]*types.Chunk, 0, min(max(config.MaxBufferChunks, 100), 4096)),
		stats:  newStatsRecorder(),
	}, nil
}

// IngestChunk buffers the chunk, flushing or dropping when the buffer is full.
func (p *BufferedPolicy) IngestChunk(ctx context.Context, chunk *types.Chunk) error {
	size := chunk.SizeBytes()

	p.mu.Lock()
	p.stats.incTotalLocked()
	if p.hasRoom(size) {
		p.appendLocked(chunk, size)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// Full: try to make room by flushing.
	flushErr := p.Flush(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasRoom(size) {
		p.appendLocked(chunk, size)
		return nil
	}

	if IsDroppable(chunk.Kind) {
		p.stats.incDroppedLocked(chunk.Kind)
		p.logDrop(chunk.Kind, "buffer_full")
		return nil
	}

	// Non-droppable: evict the oldest droppable chunk.
	if p.dropOldestDroppable() && p.hasRoom(size) {
		p.appendLocked(chunk, size)
		return nil
	}

	p.stats.incErrorsLocked()
	p.logBufferOverflow(chunk.Kind)
	if flushErr != nil {
		return fmt.Errorf("%w: %w", ErrBufferFull, flushErr)
	}
	return fmt.Errorf("%w: chunk of %d bytes exceeds buffer limit", ErrBufferFull, size)
}

// appendLocked adds a chunk to the buffer. Caller must hold mu.
func (p *BufferedPolicy) appendLocked(chunk *types.Chunk, size int64) {
	p.buffer = append(p.buffer, chunk)
	p.bufferBytes += size
	p.stats.setBufferSizeLocked(p.bufferBytes)
}

// Flush writes all buffered chunks to the sink in one batch.
// On failure the buffer is preserved; chunks ingested during the write
// stay queued behind it.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	p.stats.incFlushLocked()
	batch := p.buffer
	if len(batch) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.buffer = make([]*types.Chunk, 0, cap(batch))
	p.recalculateBufferBytes()
	p.mu.Unlock()

	if err := p.sink.WriteChunks(ctx, batch); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.buffer = append(batch, p.buffer...)
		p.recalculateBufferBytes()
		p.mu.Unlock()
		p.logFlushFailure(len(batch), err)
		return err
	}

	p.mu.Lock()
	p.stats.incPersistedLocked(int64(len(batch)))
	p.mu.Unlock()
	return nil
}

// Close flushes remaining chunks and closes the sink.
func (p *BufferedPolicy) Close() error {
	// Best-effort flush on close
	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns an atomic snapshot of counters and buffer size.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(p.bufferBytes)
}

// hasRoom checks both limits for a chunk of the given size. Caller must hold mu.
func (p *BufferedPolicy) hasRoom(size int64) bool {
	if p.config.MaxBufferChunks > 0 && len(p.buffer) >= p.config.MaxBufferChunks {
		return false
	}
	if p.config.MaxBufferBytes > 0 && p.bufferBytes+size > p.config.MaxBufferBytes {
		return false
	}
	return true
}

// dropOldestDroppable removes the oldest droppable chunk from the buffer.
// Returns false if there is none. Caller must hold mu.
func (p *BufferedPolicy) dropOldestDroppable() bool {
	for i, c := range p.buffer {
		if !IsDroppable(c.Kind) {
			continue
		}
		p.buffer = append(p.buffer[:i], p.buffer[i+1:]...)
		p.bufferBytes -= c.SizeBytes()
		p.stats.setBufferSizeLocked(p.bufferBytes)
		p.stats.incDroppedLocked(c.Kind)
		p.logDrop(c.Kind, "evicted_for_non_droppable")
		return true
	}
	return false
}

// recalculateBufferBytes recomputes bufferBytes. Caller must hold mu.
func (p *BufferedPolicy) recalculateBufferBytes() {
	var total int64
	for _, c := range p.buffer {
		total += c.SizeBytes()
	}
	p.bufferBytes = total
	p.stats.setBufferSizeLocked(total)
}

// --- Logging helpers ---

func (p *BufferedPolicy) logDrop(kind types.ChunkKind, reason string) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("chunk dropped", map[string]any{
		"chunk_kind": string(kind),
		"reason":     reason,
		"policy":     "buffered",
	})
}

func (p *BufferedPolicy) logBufferOverflow(kind types.ChunkKind) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffer overflow", map[string]any{
		"chunk_kind": string(kind),
		"policy":     "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(chunks int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("flush failed", map[string]any{
		"chunks": chunks,
		"error":  err.Error(),
		"policy": "buffered",
	})
}

var _ Policy = (*BufferedPolicy)(nil)
