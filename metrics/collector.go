// Package metrics provides per-stream metrics collection.
//
// The Collector accumulates counters while one stream is decoded. It is a
// leaf package with no internal dependencies. Persistence policy counters are
// absorbed from policy.Stats once the stream ends rather than recorded live,
// so they are never double-counted.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Stream lifecycle
	StreamsStarted   int64
	StreamsCompleted int64
	StreamsFailed    int64

	// Decoding
	FragmentsFed   int64
	BytesFed       int64
	RowsDecoded    int64
	ChunksByKind   map[string]int64
	ParseFallbacks int64
	FramingErrors  int64
	IncompleteRows int64

	// Persistence (absorbed from policy.Stats at stream completion)
	ChunksReceived  int64
	ChunksPersisted int64
	ChunksDropped   int64
	DroppedByKind   map[string]int64

	// Lode / Storage
	LodeWriteSuccess int64
	LodeWriteFailure int64

	// Dimensions (informational, set at construction)
	Policy         string
	StorageBackend string
	StreamID       string
	Source         string
}

// Collector accumulates metrics for a single stream.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	streamsStarted   int64
	streamsCompleted int64
	streamsFailed    int64

	fragmentsFed   int64
	bytesFed       int64
	rowsDecoded    int64
	chunksByKind   map[string]int64
	parseFallbacks int64
	framingErrors  int64
	incompleteRows int64

	lodeWriteSuccess int64
	lodeWriteFailure int64

	// set once via AbsorbPolicyStats
	chunksReceived  int64
	chunksPersisted int64
	chunksDropped   int64
	droppedByKind   map[string]int64

	policy         string
	storageBackend string
	streamID       string
	source         string
}

// NewCollector creates a Collector with dimension labels.
// streamID and source are optional.
func NewCollector(policy, storageBackend, streamID, source string) *Collector {
	return &Collector{
		chunksByKind:   make(map[string]int64),
		droppedByKind:  make(map[string]int64),
		policy:         policy,
		storageBackend: storageBackend,
		streamID:       streamID,
		source:         source,
	}
}

// --- Stream lifecycle ---

// IncStreamStarted records a stream start.
func (c *Collector) IncStreamStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.streamsStarted++
	c.mu.Unlock()
}

// IncStreamCompleted records a stream that decoded to a clean end.
func (c *Collector) IncStreamCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.streamsCompleted++
	c.mu.Unlock()
}

// IncStreamFailed records a stream that ended with an error.
func (c *Collector) IncStreamFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.streamsFailed++
	c.mu.Unlock()
}

// --- Decoding ---

// AddFragment records one fragment of n bytes pushed into the decoder.
func (c *Collector) AddFragment(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fragmentsFed++
	c.bytesFed += int64(n)
	c.mu.Unlock()
}

// IncChunk records one decoded row of the given chunk kind.
// The kind is string-typed to keep this package free of the types package.
func (c *Collector) IncChunk(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.rowsDecoded++
	c.chunksByKind[kind]++
	c.mu.Unlock()
}

// SetParseFallbacks records the decoder's running fallback count.
func (c *Collector) SetParseFallbacks(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.parseFallbacks = n
	c.mu.Unlock()
}

// IncFramingError records a fatal framing error.
func (c *Collector) IncFramingError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framingErrors++
	c.mu.Unlock()
}

// IncIncompleteRow records input that ended mid-row.
func (c *Collector) IncIncompleteRow() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.incompleteRows++
	c.mu.Unlock()
}

// --- Lode / Storage ---
// Lode counters are per-call, not per-record. A single WriteChunks call
// with N chunks counts as 1 success.

// IncLodeWriteSuccess records a successful Lode write operation (per-call).
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lodeWriteSuccess++
	c.mu.Unlock()
}

// IncLodeWriteFailure records a failed Lode write operation (per-call).
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lodeWriteFailure++
	c.mu.Unlock()
}

// --- Persistence (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies persistence counters from policy.Stats.
// Called once after the stream ends with the final policy stats.
func (c *Collector) AbsorbPolicyStats(received, persisted, dropped int64, droppedByKind map[string]int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksReceived = received
	c.chunksPersisted = persisted
	c.chunksDropped = dropped
	c.droppedByKind = copyCounts(droppedByKind)
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		StreamsStarted:   c.streamsStarted,
		StreamsCompleted: c.streamsCompleted,
		StreamsFailed:    c.streamsFailed,

		FragmentsFed:   c.fragmentsFed,
		BytesFed:       c.bytesFed,
		RowsDecoded:    c.rowsDecoded,
		ChunksByKind:   copyCounts(c.chunksByKind),
		ParseFallbacks: c.parseFallbacks,
		FramingErrors:  c.framingErrors,
		IncompleteRows: c.incompleteRows,

		ChunksReceived:  c.chunksReceived,
		ChunksPersisted: c.chunksPersisted,
		ChunksDropped:   c.chunksDropped,
		DroppedByKind:   copyCounts(c.droppedByKind),

		LodeWriteSuccess: c.lodeWriteSuccess,
		LodeWriteFailure: c.lodeWriteFailure,

		Policy:         c.policy,
		StorageBackend: c.storageBackend,
		StreamID:       c.streamID,
		Source:         c.source,
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
