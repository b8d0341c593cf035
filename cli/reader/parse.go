package reader

import (
	"errors"
	"fmt"
)

// ParseMetricsRecord converts a Lode record (map[string]any) to a MetricsSnapshot.
// Handles both int64 (direct writes) and float64 (JSON round-trips) for numeric fields.
func ParseMetricsRecord(record map[string]any) (*MetricsSnapshot, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	snap := &MetricsSnapshot{
		CompletedAt: toString(record["completed_at"]),

		StreamsStarted:   toInt64(record["streams_started_total"]),
		StreamsCompleted: toInt64(record["streams_completed_total"]),
		StreamsFailed:    toInt64(record["streams_failed_total"]),

		FragmentsFed:   toInt64(record["fragments_fed_total"]),
		BytesFed:       toInt64(record["bytes_fed_total"]),
		RowsDecoded:    toInt64(record["rows_decoded_total"]),
		ParseFallbacks: toInt64(record["parse_fallbacks_total"]),
		FramingErrors:  toInt64(record["framing_errors_total"]),
		IncompleteRows: toInt64(record["incomplete_rows_total"]),
		ChunksByKind:   parseCounts(record["chunks_by_kind"]),

		ChunksReceived:  toInt64(record["chunks_received_total"]),
		ChunksPersisted: toInt64(record["chunks_persisted_total"]),
		ChunksDropped:   toInt64(record["chunks_dropped_total"]),
		DroppedByKind:   parseCounts(record["dropped_by_kind"]),

		LodeWriteSuccess: toInt64(record["lode_write_success_total"]),
		LodeWriteFailure: toInt64(record["lode_write_failure_total"]),

		Policy:         toString(record["policy"]),
		StorageBackend: toString(record["storage_backend"]),
		StreamID:       toString(record["stream_id"]),
		Source:         toString(record["source"]),
	}

	// The write path always populates these; a missing value means a
	// malformed record.
	required := []struct{ name, value string }{
		{"completed_at", snap.CompletedAt},
		{"stream_id", snap.StreamID},
		{"policy", snap.Policy},
		{"storage_backend", snap.StorageBackend},
	}
	for _, f := range required {
		if f.value == "" {
			return nil, fmt.Errorf("metrics record missing required field: %s", f.name)
		}
	}

	return snap, nil
}

// toInt64 converts a value to int64, handling float64 from JSON and int64 from direct writes.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// parseCounts handles both map[string]int64 (direct) and map[string]any
// (JSON round-trip).
func parseCounts(v any) map[string]int64 {
	switch m := v.(type) {
	case map[string]int64:
		return m
	case map[string]any:
		result := make(map[string]int64, len(m))
		for k, val := range m {
			result[k] = toInt64(val)
		}
		return result
	default:
		return nil
	}
}
