// Package policy defines how decoded chunks are handed to persistence.
package policy

import (
	"context"
	"sync"

	"github.com/pithecene-io/flight/types"
)

// Policy defines the persistence policy interface.
// Policies control buffering, dropping, and persistence of decoded chunks.
//
// Rules shared by every policy:
//   - May drop: console, debug_info, hint
//   - Must NOT drop any other kind
//   - Policy must not alter chunk shapes or reorder chunks
//   - Policy failure terminates the stream
type Policy interface {
	// IngestChunk handles one decoded chunk.
	// May drop droppable kinds; returns error to terminate the stream.
	IngestChunk(ctx context.Context, chunk *types.Chunk) error

	// Flush flushes any buffered chunks.
	// Called at end of input and on stream failure.
	Flush(ctx context.Context) error

	// Close cleans up policy resources.
	Close() error

	// Stats returns an atomic snapshot of policy metrics.
	Stats() Stats
}

// Stats represents policy observability metrics.
type Stats struct {
	// TotalChunks is the total number of chunks received.
	TotalChunks int64
	// ChunksPersisted is the number of chunks written to the sink.
	ChunksPersisted int64
	// ChunksDropped is the total number of chunks dropped.
	ChunksDropped int64
	// DroppedByKind maps chunk kinds to drop counts.
	DroppedByKind map[types.ChunkKind]int64
	// BufferSize is the current buffer size in bytes (if buffered).
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of errors encountered.
	Errors int64
}

// DroppedByKindStrings returns DroppedByKind keyed by plain strings.
func (s Stats) DroppedByKindStrings() map[string]int64 {
	out := make(map[string]int64, len(s.DroppedByKind))
	for k, v := range s.DroppedByKind {
		out[string(k)] = v
	}
	return out
}

// IsDroppable returns true if the chunk kind may be dropped by policy.
// Only diagnostic kinds are droppable.
func IsDroppable(kind types.ChunkKind) bool {
	return kind.IsDiagnostic()
}

// DroppableKinds returns the set of chunk kinds that may be dropped.
func DroppableKinds() map[types.ChunkKind]bool {
	result := make(map[types.ChunkKind]bool)
	for _, k := range types.AllChunkKinds() {
		if IsDroppable(k) {
			result[k] = true
		}
	}
	return result
}

// statsRecorder is an internal helper for thread-safe stats management.
// Policies call explicit methods to record mutations; the recorder does not
// infer any policy decisions.
//
// Lock discipline:
//   - StrictPolicy uses the locking methods (incTotal, snapshot, ...)
//   - BufferedPolicy and StreamingPolicy use the Locked methods only while
//     holding their own mu, so buffer state and counters move together.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		stats: Stats{
			DroppedByKind: make(map[types.ChunkKind]int64),
		},
	}
}

func (r *statsRecorder) incTotal() {
	r.mu.Lock()
	r.stats.TotalChunks++
	r.mu.Unlock()
}

func (r *statsRecorder) incPersisted(n int64) {
	r.mu.Lock()
	r.stats.ChunksPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incDropped(kind types.ChunkKind) {
	r.mu.Lock()
	r.stats.ChunksDropped++
	r.stats.DroppedByKind[kind]++
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.stats.BufferSize)
}

// --- Locked methods ---
// Caller must hold the owning policy's mu.

func (r *statsRecorder) incTotalLocked() {
	r.stats.TotalChunks++
}

func (r *statsRecorder) incPersistedLocked(n int64) {
	r.stats.ChunksPersisted += n
}

func (r *statsRecorder) incDroppedLocked(kind types.ChunkKind) {
	r.stats.ChunksDropped++
	r.stats.DroppedByKind[kind]++
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

func (r *statsRecorder) setBufferSizeLocked(bytes int64) {
	r.stats.BufferSize = bytes
}

// snapshotLocked returns a snapshot of stats with the given bufferSize.
func (r *statsRecorder) snapshotLocked(bufferSize int64) Stats {
	s := r.stats
	s.BufferSize = bufferSize
	s.DroppedByKind = make(map[types.ChunkKind]int64, len(r.stats.DroppedByKind))
	for k, v := range r.stats.DroppedByKind {
		s.DroppedByKind[k] = v
	}
	return s
}
