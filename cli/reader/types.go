// Package reader provides the read-side views for the flight CLI.
//
// Views are plain data payloads shared by the json, table, yaml and TUI
// renderers. They are built from decoded chunks, chunk exports and Lode
// metrics records; nothing here writes.
package reader

// ChunkRow is one line of the chunk log.
type ChunkRow struct {
	Seq       int64  `json:"seq" yaml:"seq"`
	ID        string `json:"id" yaml:"id"`
	Kind      string `json:"kind" yaml:"kind"`
	Timestamp uint64 `json:"timestamp" yaml:"timestamp"`
	Size      int    `json:"size" yaml:"size"`
	Summary   string `json:"summary" yaml:"summary"`
}

// KindCount is the number of chunks of one kind.
type KindCount struct {
	Kind       string `json:"kind" yaml:"kind"`
	Count      int64  `json:"count" yaml:"count"`
	Diagnostic bool   `json:"diagnostic" yaml:"diagnostic"`
}

// ExportSummary describes one chunk export.
type ExportSummary struct {
	StreamID       string      `json:"stream_id" yaml:"stream_id"`
	Source         string      `json:"source" yaml:"source"`
	Complete       bool        `json:"complete" yaml:"complete"`
	ChunkCount     int64       `json:"chunk_count" yaml:"chunk_count"`
	BytesConsumed  int64       `json:"bytes_consumed" yaml:"bytes_consumed"`
	ParseFallbacks int64       `json:"parse_fallbacks" yaml:"parse_fallbacks"`
	Error          string      `json:"error,omitempty" yaml:"error,omitempty"`
	Kinds          []KindCount `json:"kinds" yaml:"kinds"`
}

// MetricsSnapshot is a stream metrics record read back from Lode.
type MetricsSnapshot struct {
	CompletedAt string `json:"completed_at" yaml:"completed_at"`

	// Stream lifecycle
	StreamsStarted   int64 `json:"streams_started_total" yaml:"streams_started_total"`
	StreamsCompleted int64 `json:"streams_completed_total" yaml:"streams_completed_total"`
	StreamsFailed    int64 `json:"streams_failed_total" yaml:"streams_failed_total"`

	// Decoding
	FragmentsFed   int64            `json:"fragments_fed_total" yaml:"fragments_fed_total"`
	BytesFed       int64            `json:"bytes_fed_total" yaml:"bytes_fed_total"`
	RowsDecoded    int64            `json:"rows_decoded_total" yaml:"rows_decoded_total"`
	ParseFallbacks int64            `json:"parse_fallbacks_total" yaml:"parse_fallbacks_total"`
	FramingErrors  int64            `json:"framing_errors_total" yaml:"framing_errors_total"`
	IncompleteRows int64            `json:"incomplete_rows_total" yaml:"incomplete_rows_total"`
	ChunksByKind   map[string]int64 `json:"chunks_by_kind" yaml:"chunks_by_kind"`

	// Persistence
	ChunksReceived  int64            `json:"chunks_received_total" yaml:"chunks_received_total"`
	ChunksPersisted int64            `json:"chunks_persisted_total" yaml:"chunks_persisted_total"`
	ChunksDropped   int64            `json:"chunks_dropped_total" yaml:"chunks_dropped_total"`
	DroppedByKind   map[string]int64 `json:"dropped_by_kind" yaml:"dropped_by_kind"`

	// Lode / Storage
	LodeWriteSuccess int64 `json:"lode_write_success_total" yaml:"lode_write_success_total"`
	LodeWriteFailure int64 `json:"lode_write_failure_total" yaml:"lode_write_failure_total"`

	// Dimensions
	Policy         string `json:"policy" yaml:"policy"`
	StorageBackend string `json:"storage_backend" yaml:"storage_backend"`
	StreamID       string `json:"stream_id" yaml:"stream_id"`
	Source         string `json:"source" yaml:"source"`
}
