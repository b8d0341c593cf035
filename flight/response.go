// Package flight implements an incremental decoder for the Flight row stream.
//
// A Flight stream is a sequence of rows:
//
//	row  := id ":" [tag [length ","]] body terminator
//
// where id is lowercase hex, tag is an optional single letter and the body is
// either newline terminated or, for binary rows, exactly length bytes.
//
// A Response owns all parser state for one stream. Fragments are pushed with
// Feed in arrival order; row boundaries may fall anywhere, including inside
// an id, a tag or a payload. Every completed row is decoded into exactly one
// types.Chunk and appended to the response's chunk log.
//
// A Response is not safe for concurrent use. The single caller that drives
// the stream owns it.
package flight

import (
	"strconv"

	"github.com/pithecene-io/flight/types"
)

// Phase is the framer sub-state within the row being assembled.
type Phase uint8

const (
	// PhaseReadID accumulates hex id digits up to ':'.
	PhaseReadID Phase = iota
	// PhaseReadTag resolves the optional tag, and the length header for
	// length-framed rows.
	PhaseReadTag
	// PhaseReadBodyByDelimiter accumulates body bytes up to '\n'.
	PhaseReadBodyByDelimiter
	// PhaseReadBodyByLength accumulates exactly expectedLength body bytes.
	PhaseReadBodyByLength
)

func (p Phase) String() string {
	switch p {
	case PhaseReadID:
		return "read_id"
	case PhaseReadTag:
		return "read_tag"
	case PhaseReadBodyByDelimiter:
		return "read_body_by_delimiter"
	case PhaseReadBodyByLength:
		return "read_body_by_length"
	default:
		return "unknown"
	}
}

// MaxRowLength bounds the declared length of a length-framed row (64 MiB).
const MaxRowLength = 64 * 1024 * 1024

// Response is the parser state and chunk log for one stream.
type Response struct {
	dev bool

	phase          Phase
	pendingID      uint64
	pendingTag     byte // 0 means no tag (model row)
	heldTag        byte // tag candidate waiting for its lookahead byte
	expectedLength int
	pendingBody    []byte
	rowStarted     bool

	consumed  int64 // bytes consumed before the current Feed call
	clock     uint64
	fallbacks int64
	err       error

	chunks []types.Chunk
}

// New creates a response in its initial state: phase ReadID, all
// accumulators zeroed and an empty chunk log.
// dev selects development error and postpone chunk kinds.
func New(dev bool) *Response {
	return &Response{dev: dev}
}

// Dev reports whether the response decodes in development mode.
func (r *Response) Dev() bool {
	return r.dev
}

// Phase returns the current framer phase.
func (r *Response) Phase() Phase {
	return r.phase
}

// Chunks returns a copy of the chunk log.
// Safe to call at any point, including mid-row.
func (r *Response) Chunks() []types.Chunk {
	out := make([]types.Chunk, len(r.chunks))
	copy(out, r.chunks)
	return out
}

// ChunksSince returns a copy of the chunks appended after the first n.
// Drivers use it to publish only newly decoded chunks after each Feed.
func (r *Response) ChunksSince(n int) []types.Chunk {
	if n < 0 {
		n = 0
	}
	if n >= len(r.chunks) {
		return nil
	}
	out := make([]types.Chunk, len(r.chunks)-n)
	copy(out, r.chunks[n:])
	return out
}

// Len returns the number of chunks decoded so far.
func (r *Response) Len() int {
	return len(r.chunks)
}

// Consumed returns the number of stream bytes consumed so far.
func (r *Response) Consumed() int64 {
	return r.consumed
}

// Fallbacks returns how many structured payloads failed to parse and were
// kept as raw strings.
func (r *Response) Fallbacks() int64 {
	return r.fallbacks
}

// Err returns the fatal framing error, if the stream has been abandoned.
func (r *Response) Err() error {
	return r.err
}

// Clock returns the current clock value.
func (r *Response) Clock() uint64 {
	return r.clock
}

// SetClock sets the timestamp stamped on subsequently decoded chunks.
// The clock never moves backwards; smaller values are ignored.
func (r *Response) SetClock(ts uint64) {
	if ts > r.clock {
		r.clock = ts
	}
}

// Tick advances the clock by one logical batch.
func (r *Response) Tick() {
	r.clock++
}

// Finish signals that no more input will arrive.
// Returns the fatal framing error if the stream was abandoned, an
// *IncompleteRowError if a row is partially buffered, or nil.
func (r *Response) Finish() error {
	if r.err != nil {
		return r.err
	}
	if !r.rowStarted {
		return nil
	}
	buffered := len(r.pendingBody)
	if r.heldTag != 0 {
		buffered++
	}
	return &IncompleteRowError{
		ID:       strconv.FormatUint(r.pendingID, 16),
		Phase:    r.phase,
		Buffered: buffered,
	}
}

// resetRow returns the row state to its initial values.
// pendingBody keeps its capacity; decoded chunks never alias it.
func (r *Response) resetRow() {
	r.phase = PhaseReadID
	r.pendingID = 0
	r.pendingTag = 0
	r.heldTag = 0
	r.expectedLength = 0
	r.pendingBody = r.pendingBody[:0]
	r.rowStarted = false
}
