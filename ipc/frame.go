// Package ipc implements the chunk export format: length-prefixed msgpack
// frames, one per decoded chunk, closed by a single stream_end frame.
//
// Frame layout: 4-byte big-endian payload length, then the msgpack payload.
// Every payload carries a "type" discriminator.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/flight/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Frame type discriminators.
const (
	ChunkType     = "chunk"
	StreamEndType = "stream_end"
)

// ChunkFrame is the export form of one decoded chunk.
type ChunkFrame struct {
	Type        string `msgpack:"type"`
	types.Chunk `msgpack:",inline"`
}

// StreamEndFrame closes an export. It summarises the stream it follows.
type StreamEndFrame struct {
	Type            string           `msgpack:"type"`
	ContractVersion string           `msgpack:"contract_version"`
	StreamID        string           `msgpack:"stream_id"`
	Source          string           `msgpack:"source"`
	ChunkCount      int64            `msgpack:"chunk_count"`
	ByKind          map[string]int64 `msgpack:"by_kind"`
	BytesConsumed   int64            `msgpack:"bytes_consumed"`
	ParseFallbacks  int64            `msgpack:"parse_fallbacks"`
	// Error is the terminal stream error, empty on success.
	Error string `msgpack:"error,omitempty"`
}

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorEncode indicates a msgpack encoding or write error.
	FrameErrorEncode
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorDecode:
		return "decode"
	case FrameErrorEncode:
		return "encode"
	default:
		return "unknown"
	}
}

// FrameError represents a frame encoding or decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the export can no longer be read.
// Partial and oversized frames lose framing; a bad payload does not.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameEncoder writes length-prefixed msgpack frames. Safe for concurrent use.
type FrameEncoder struct {
	mu     sync.Mutex
	writer io.Writer
	frames int64
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// WriteChunk writes one chunk frame.
func (e *FrameEncoder) WriteChunk(c *types.Chunk) error {
	return e.writeFrame(&ChunkFrame{Type: ChunkType, Chunk: *c})
}

// WriteStreamEnd writes the closing stream_end frame.
func (e *FrameEncoder) WriteStreamEnd(f StreamEndFrame) error {
	f.Type = StreamEndType
	if f.ContractVersion == "" {
		f.ContractVersion = types.ContractVersion
	}
	return e.writeFrame(&f)
}

// Frames returns the number of frames written so far.
func (e *FrameEncoder) Frames() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

func (e *FrameEncoder) writeFrame(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return &FrameError{Kind: FrameErrorEncode, Msg: "failed to encode frame", Err: err}
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.writer.Write(buf); err != nil {
		return &FrameError{Kind: FrameErrorEncode, Msg: "failed to write frame", Err: err}
	}
	e.frames++
	return nil
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame and returns its raw msgpack payload.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read payload", Err: err}
	}
	return payload, nil
}

// frameTypePeek peeks at the type field without a full decode.
type frameTypePeek struct {
	Type string `msgpack:"type"`
}

// DecodeFrame decodes a payload into *types.Chunk or *StreamEndFrame,
// selected by its type field.
func DecodeFrame(payload []byte) (any, error) {
	var peek frameTypePeek
	if err := msgpack.Unmarshal(payload, &peek); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode frame type", Err: err}
	}

	switch peek.Type {
	case ChunkType:
		return DecodeChunk(payload)
	case StreamEndType:
		return DecodeStreamEnd(payload)
	default:
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("unknown frame type %q", peek.Type)}
	}
}

// DecodeChunk decodes a payload as a chunk frame.
func DecodeChunk(payload []byte) (*types.Chunk, error) {
	var frame ChunkFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode chunk", Err: err}
	}
	if frame.Type != ChunkType {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("frame type %q is not %q", frame.Type, ChunkType)}
	}
	if frame.Kind == types.ChunkKindBuffer && frame.Data == nil {
		frame.Data = []byte{}
	}
	return &frame.Chunk, nil
}

// DecodeStreamEnd decodes a payload as a stream_end frame.
func DecodeStreamEnd(payload []byte) (*StreamEndFrame, error) {
	var frame StreamEndFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode stream end", Err: err}
	}
	return &frame, nil
}

// ReadAll reads an export to the end. The stream_end frame is nil when the
// export was cut short. A fatal frame error stops the read and is returned
// together with the chunks read so far.
func ReadAll(r io.Reader) ([]*types.Chunk, *StreamEndFrame, error) {
	dec := NewFrameDecoder(r)
	var (
		chunks []*types.Chunk
		end    *StreamEndFrame
	)
	for {
		payload, err := dec.ReadFrame()
		if err == io.EOF {
			return chunks, end, nil
		}
		if err != nil {
			return chunks, end, err
		}
		frame, err := DecodeFrame(payload)
		if err != nil {
			return chunks, end, err
		}
		switch f := frame.(type) {
		case *types.Chunk:
			chunks = append(chunks, f)
		case *StreamEndFrame:
			end = f
		}
	}
}
