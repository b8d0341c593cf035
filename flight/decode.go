package flight

import (
	"bytes"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/pithecene-io/flight/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// bufferTypes maps length-framed tags to the typed array they encode.
var bufferTypes = map[byte]string{
	'A': "ArrayBuffer",
	'O': "Int8Array",
	'o': "Uint8Array",
	'U': "Uint8ClampedArray",
	'S': "Int16Array",
	's': "Uint16Array",
	'L': "Int32Array",
	'l': "Uint32Array",
	'G': "Float32Array",
	'g': "Float64Array",
	'M': "BigInt64Array",
	'm': "BigUint64Array",
	'V': "DataView",
}

// isTag reports whether b is a recognized tag letter.
func isTag(b byte) bool {
	switch b {
	case 'T', 'I', 'H', 'E', 'P', 'D', 'W', 'R', 'r', 'X', 'x', 'C':
		return true
	}
	return isLengthTag(b)
}

// takesTag reports whether candidate is consumed as the row's tag given the
// byte after it. A ':' there means the letter is body. A length tag must
// also be followed by its hex length or ',', so text such as "some text"
// stays a Model row.
func takesTag(candidate, next byte) bool {
	if next == ':' {
		return false
	}
	if isLengthTag(candidate) {
		_, hex := hexDigit(next)
		return hex || next == ','
	}
	return true
}

// isLengthTag reports whether b tags a length-framed binary row.
func isLengthTag(b byte) bool {
	_, ok := bufferTypes[b]
	return ok
}

// BufferType returns the typed array name for a length-framed tag.
func BufferType(tag byte) (string, bool) {
	name, ok := bufferTypes[tag]
	return name, ok
}

// decodeRow builds the chunk for one complete row.
// The second result reports whether a structured payload fell back to its
// raw string form.
func (r *Response) decodeRow(id uint64, tag byte, body []byte) (types.Chunk, bool) {
	chunk := types.Chunk{
		ID:           strconv.FormatUint(id, 16),
		OriginalBody: string(body),
		Timestamp:    r.clock,
	}

	var ok = true
	switch tag {
	case 'T':
		chunk.Kind = types.ChunkKindText
		chunk.Text = chunk.OriginalBody
	case 'I':
		chunk.Kind = types.ChunkKindModule
		chunk.Value, ok = parseValue(body)
	case 'H':
		chunk.Kind = types.ChunkKindHint
		if len(body) > 0 {
			chunk.Code = string(body[:1])
			body = body[1:]
		}
		chunk.Value, ok = parseValue(body)
	case 'E':
		chunk.Kind = r.pick(types.ChunkKindErrorDev, types.ChunkKindErrorProd)
		chunk.Value, ok = parseValue(body)
	case 'P':
		chunk.Kind = r.pick(types.ChunkKindPostponeDev, types.ChunkKindPostponeProd)
		chunk.Value, ok = parseValue(body)
	case 'D':
		chunk.Kind = types.ChunkKindDebugInfo
		chunk.Value, ok = parseValue(body)
	case 'W':
		chunk.Kind = types.ChunkKindConsole
		chunk.Console, ok = parseConsole(body)
	case 'R', 'r':
		chunk.Kind = types.ChunkKindStartReadableStream
		if tag == 'r' {
			chunk.StreamType = "bytes"
		}
	case 'X', 'x':
		chunk.Kind = types.ChunkKindStartAsyncIterable
		chunk.IsIterator = tag == 'x'
	case 'C':
		chunk.Kind = types.ChunkKindStopStream
		chunk.FinalModel = chunk.OriginalBody
	case 0:
		chunk.Kind = types.ChunkKindModel
		chunk.Value, ok = parseValue(body)
	default:
		// Length-framed. pendingBody is reused, so the payload is copied.
		chunk.Kind = types.ChunkKindBuffer
		chunk.BufferType = bufferTypes[tag]
		chunk.Data = bytes.Clone(body)
		if chunk.Data == nil {
			chunk.Data = []byte{}
		}
	}
	return chunk, !ok
}

func (r *Response) pick(dev, prod types.ChunkKind) types.ChunkKind {
	if r.dev {
		return dev
	}
	return prod
}

// parseValue parses body as JSON, falling back to the raw body as a string.
// Unmarshal rejects trailing bytes, so "[1]x" falls back too.
func parseValue(body []byte) (any, bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		return string(body), false
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body), false
	}
	return v, true
}

// parseConsole decodes a console replay row:
//
//	[methodName, stackTrace, owner, env, ...args]
//
// Anything else yields a console value whose only arg is the raw body.
func parseConsole(body []byte) (*types.ConsoleValue, bool) {
	fallback := &types.ConsoleValue{Args: []any{string(body)}}

	v, ok := parseValue(body)
	if !ok {
		return fallback, false
	}
	arr, isArray := v.([]any)
	if !isArray || len(arr) < 4 {
		return fallback, false
	}
	method, isString := arr[0].(string)
	if !isString {
		return fallback, false
	}
	env, _ := arr[3].(string)

	args := make([]any, len(arr)-4)
	copy(args, arr[4:])
	return &types.ConsoleValue{
		MethodName: method,
		StackTrace: arr[1],
		Owner:      arr[2],
		Env:        env,
		Args:       args,
	}, true
}
