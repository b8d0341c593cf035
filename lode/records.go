package lode

import (
	"encoding/base64"
	"time"

	"github.com/pithecene-io/flight/metrics"
	"github.com/pithecene-io/flight/types"
)

// Record discriminator values.
const (
	RecordKindChunk   = "chunk"
	RecordKindMetrics = "metrics"
)

// Partition keys, in Hive layout order.
const (
	PartitionSource   = "source"
	PartitionDay      = "day"
	PartitionStreamID = "stream_id"
	PartitionKind     = "kind"
)

var partitionKeys = []string{PartitionSource, PartitionDay, PartitionStreamID, PartitionKind}

// toChunkRecordMap converts a decoded chunk to a storage record.
// Optional payload fields are only set when the kind carries them.
// Buffer data is stored base64 encoded.
func toChunkRecordMap(c *types.Chunk, seq int64, cfg Config) map[string]any {
	m := map[string]any{
		"record_kind":      RecordKindChunk,
		"contract_version": types.ContractVersion,
		"seq":              seq,
		"id":               c.ID,
		"original_body":    c.OriginalBody,
		"timestamp":        c.Timestamp,
		"policy":           cfg.Policy,

		PartitionSource:   cfg.Source,
		PartitionDay:      cfg.Day,
		PartitionStreamID: cfg.StreamID,
		PartitionKind:     string(c.Kind),
	}

	switch c.Kind {
	case types.ChunkKindText:
		m["text"] = c.Text
	case types.ChunkKindHint:
		m["code"] = c.Code
		m["value"] = c.Value
	case types.ChunkKindConsole:
		if c.Console != nil {
			m["console"] = map[string]any{
				"method_name": c.Console.MethodName,
				"stack_trace": c.Console.StackTrace,
				"owner":       c.Console.Owner,
				"env":         c.Console.Env,
				"args":        c.Console.Args,
			}
		}
	case types.ChunkKindStartReadableStream, types.ChunkKindStartAsyncIterable:
		m["stream_type"] = c.StreamType
		m["is_iterator"] = c.IsIterator
	case types.ChunkKindStopStream:
		m["final_model"] = c.FinalModel
	case types.ChunkKindBuffer:
		m["buffer_type"] = c.BufferType
		m["data"] = base64.StdEncoding.EncodeToString(c.Data)
	default:
		m["value"] = c.Value
	}
	return m
}

// toMetricsRecordMap converts a stream metrics snapshot to a storage record.
func toMetricsRecordMap(s metrics.Snapshot, completedAt time.Time, cfg Config) map[string]any {
	return map[string]any{
		"record_kind":      RecordKindMetrics,
		"contract_version": types.ContractVersion,
		"completed_at":     completedAt.UTC().Format(time.RFC3339Nano),
		"policy":           s.Policy,
		"storage_backend":  s.StorageBackend,

		"streams_started_total":   s.StreamsStarted,
		"streams_completed_total": s.StreamsCompleted,
		"streams_failed_total":    s.StreamsFailed,

		"fragments_fed_total":   s.FragmentsFed,
		"bytes_fed_total":       s.BytesFed,
		"rows_decoded_total":    s.RowsDecoded,
		"parse_fallbacks_total": s.ParseFallbacks,
		"framing_errors_total":  s.FramingErrors,
		"incomplete_rows_total": s.IncompleteRows,
		"chunks_by_kind":        s.ChunksByKind,

		"chunks_received_total":  s.ChunksReceived,
		"chunks_persisted_total": s.ChunksPersisted,
		"chunks_dropped_total":   s.ChunksDropped,
		"dropped_by_kind":        s.DroppedByKind,

		"lode_write_success_total": s.LodeWriteSuccess,
		"lode_write_failure_total": s.LodeWriteFailure,

		PartitionSource:   cfg.Source,
		PartitionDay:      cfg.Day,
		PartitionStreamID: cfg.StreamID,
		PartitionKind:     RecordKindMetrics,
	}
}

// DecodeChunkRecord rebuilds a chunk from a record read back from the
// dataset. Returns false for records that are not chunk records.
func DecodeChunkRecord(m map[string]any) (types.Chunk, int64, bool) {
	if m["record_kind"] != RecordKindChunk {
		return types.Chunk{}, 0, false
	}
	c := types.Chunk{
		Kind:         types.ChunkKind(toString(m[PartitionKind])),
		ID:           toString(m["id"]),
		OriginalBody: toString(m["original_body"]),
		Timestamp:    uint64(toInt64(m["timestamp"])),
		Text:         toString(m["text"]),
		Value:        m["value"],
		Code:         toString(m["code"]),
		StreamType:   toString(m["stream_type"]),
		FinalModel:   toString(m["final_model"]),
		BufferType:   toString(m["buffer_type"]),
	}
	if b, ok := m["is_iterator"].(bool); ok {
		c.IsIterator = b
	}
	if cv, ok := m["console"].(map[string]any); ok {
		args, _ := cv["args"].([]any)
		c.Console = &types.ConsoleValue{
			MethodName: toString(cv["method_name"]),
			StackTrace: cv["stack_trace"],
			Owner:      cv["owner"],
			Env:        toString(cv["env"]),
			Args:       args,
		}
	}
	if c.Kind == types.ChunkKindBuffer {
		data, err := base64.StdEncoding.DecodeString(toString(m["data"]))
		if err != nil || data == nil {
			data = []byte{}
		}
		c.Data = data
	}
	return c, toInt64(m["seq"]), true
}

// toString converts a value to string, returning "" for nil or non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 accepts the numeric shapes a JSON decoder may produce.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case interface{ Int64() (int64, error) }:
		i, _ := n.Int64()
		return i
	}
	return 0
}
