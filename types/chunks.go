// Package types defines the decoded chunk model shared by the decoder, the
// persistence layer and the export stream.
//
//nolint:revive // types is a common Go package naming convention
package types

// ContractVersion is the chunk export contract version.
const ContractVersion = "0.1.0"

// ChunkKind discriminates the chunk union.
type ChunkKind string

// Chunk kinds, one per decode branch.
const (
	ChunkKindText                ChunkKind = "text"
	ChunkKindModule              ChunkKind = "module"
	ChunkKindModel               ChunkKind = "model"
	ChunkKindHint                ChunkKind = "hint"
	ChunkKindErrorDev            ChunkKind = "error_dev"
	ChunkKindErrorProd           ChunkKind = "error_prod"
	ChunkKindPostponeDev         ChunkKind = "postpone_dev"
	ChunkKindPostponeProd        ChunkKind = "postpone_prod"
	ChunkKindBuffer              ChunkKind = "buffer"
	ChunkKindDebugInfo           ChunkKind = "debug_info"
	ChunkKindConsole             ChunkKind = "console"
	ChunkKindStartReadableStream ChunkKind = "start_readable_stream"
	ChunkKindStartAsyncIterable  ChunkKind = "start_async_iterable"
	ChunkKindStopStream          ChunkKind = "stop_stream"
)

// AllChunkKinds returns every chunk kind in declaration order.
func AllChunkKinds() []ChunkKind {
	return []ChunkKind{
		ChunkKindText,
		ChunkKindModule,
		ChunkKindModel,
		ChunkKindHint,
		ChunkKindErrorDev,
		ChunkKindErrorProd,
		ChunkKindPostponeDev,
		ChunkKindPostponeProd,
		ChunkKindBuffer,
		ChunkKindDebugInfo,
		ChunkKindConsole,
		ChunkKindStartReadableStream,
		ChunkKindStartAsyncIterable,
		ChunkKindStopStream,
	}
}

// IsDiagnostic returns true for kinds that only carry dev-time diagnostics.
// Diagnostic chunks never affect the rendered result.
func (k ChunkKind) IsDiagnostic() bool {
	switch k {
	case ChunkKindHint, ChunkKindDebugInfo, ChunkKindConsole:
		return true
	default:
		return false
	}
}

// IsError returns true for error and postpone kinds.
func (k ChunkKind) IsError() bool {
	switch k {
	case ChunkKindErrorDev, ChunkKindErrorProd, ChunkKindPostponeDev, ChunkKindPostponeProd:
		return true
	default:
		return false
	}
}

// Chunk is one decoded row.
// Kind selects which payload fields are populated; the common fields
// (ID, OriginalBody, Timestamp) are always set.
type Chunk struct {
	// Kind is the chunk discriminator.
	Kind ChunkKind `msgpack:"kind" json:"kind"`
	// ID is the row id rendered as lowercase hex without leading zeros.
	ID string `msgpack:"id" json:"id"`
	// OriginalBody is the raw, unparsed row body.
	OriginalBody string `msgpack:"original_body" json:"original_body"`
	// Timestamp is the response clock at decode time.
	Timestamp uint64 `msgpack:"timestamp" json:"timestamp"`

	// Text is the verbatim body of a text chunk.
	Text string `msgpack:"text,omitempty" json:"text,omitempty"`
	// Value is the structured payload (parsed JSON, or the raw body as a string).
	Value any `msgpack:"value,omitempty" json:"value,omitempty"`
	// Code is the single-character hint code.
	Code string `msgpack:"code,omitempty" json:"code,omitempty"`
	// Console is the decoded console replay record.
	Console *ConsoleValue `msgpack:"console,omitempty" json:"console,omitempty"`
	// StreamType is "bytes" for byte streams, empty otherwise.
	StreamType string `msgpack:"stream_type,omitempty" json:"stream_type,omitempty"`
	// IsIterator distinguishes iterators from async iterables.
	IsIterator bool `msgpack:"is_iterator,omitempty" json:"is_iterator,omitempty"`
	// FinalModel is the closing label carried by a stop-stream row.
	FinalModel string `msgpack:"final_model,omitempty" json:"final_model,omitempty"`
	// BufferType names the typed array a binary row was encoded from.
	BufferType string `msgpack:"buffer_type,omitempty" json:"buffer_type,omitempty"`
	// Data is the raw payload of a binary row.
	Data []byte `msgpack:"data,omitempty" json:"data,omitempty"`
}

// ConsoleValue is a server console call replayed on the client.
type ConsoleValue struct {
	MethodName string `msgpack:"method_name" json:"method_name"`
	StackTrace any    `msgpack:"stack_trace" json:"stack_trace"`
	Owner      any    `msgpack:"owner" json:"owner"`
	Env        string `msgpack:"env" json:"env"`
	Args       []any  `msgpack:"args" json:"args"`
}

// SizeBytes estimates the in-memory footprint of a chunk.
// Used by buffered policies for byte limits.
func (c *Chunk) SizeBytes() int64 {
	return int64(len(c.ID) + len(c.OriginalBody) + len(c.Text) + len(c.Data) + 64)
}
