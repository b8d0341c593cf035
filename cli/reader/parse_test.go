package reader

import (
	"strings"
	"testing"
)

func metricsRecord() map[string]any {
	// JSON round-tripped record: counters come back as float64.
	return map[string]any{
		"record_kind":              "metrics",
		"completed_at":             "2026-10-19T15:00:00Z",
		"streams_started_total":    float64(1),
		"streams_completed_total":  float64(1),
		"streams_failed_total":     float64(0),
		"fragments_fed_total":      float64(12),
		"bytes_fed_total":          float64(4096),
		"rows_decoded_total":       float64(40),
		"parse_fallbacks_total":    float64(2),
		"framing_errors_total":     float64(0),
		"incomplete_rows_total":    float64(0),
		"chunks_by_kind":           map[string]any{"model": float64(30), "console": float64(10)},
		"chunks_received_total":    float64(40),
		"chunks_persisted_total":   float64(35),
		"chunks_dropped_total":     float64(5),
		"dropped_by_kind":          map[string]any{"console": float64(5)},
		"lode_write_success_total": float64(4),
		"lode_write_failure_total": float64(1),
		"policy":                   "buffered",
		"storage_backend":          "fs",
		"stream_id":                "s-1",
		"source":                   "fixture",
	}
}

func TestParseMetricsRecord(t *testing.T) {
	parsed, err := ParseMetricsRecord(metricsRecord())
	if err != nil {
		t.Fatalf("ParseMetricsRecord failed: %v", err)
	}

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"StreamsStarted", parsed.StreamsStarted, 1},
		{"FragmentsFed", parsed.FragmentsFed, 12},
		{"BytesFed", parsed.BytesFed, 4096},
		{"RowsDecoded", parsed.RowsDecoded, 40},
		{"ParseFallbacks", parsed.ParseFallbacks, 2},
		{"ChunksPersisted", parsed.ChunksPersisted, 35},
		{"ChunksDropped", parsed.ChunksDropped, 5},
		{"LodeWriteFailure", parsed.LodeWriteFailure, 1},
		{"ChunksByKind[model]", parsed.ChunksByKind["model"], 30},
		{"DroppedByKind[console]", parsed.DroppedByKind["console"], 5},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	if parsed.StreamID != "s-1" || parsed.Source != "fixture" || parsed.Policy != "buffered" {
		t.Errorf("dimensions = %q/%q/%q", parsed.StreamID, parsed.Source, parsed.Policy)
	}
}

func TestParseMetricsRecord_DirectInt64(t *testing.T) {
	record := metricsRecord()
	record["rows_decoded_total"] = int64(7)
	record["dropped_by_kind"] = map[string]int64{"hint": 3}

	parsed, err := ParseMetricsRecord(record)
	if err != nil {
		t.Fatalf("ParseMetricsRecord failed: %v", err)
	}
	if parsed.RowsDecoded != 7 || parsed.DroppedByKind["hint"] != 3 {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestParseMetricsRecord_MissingRequired(t *testing.T) {
	for _, field := range []string{"completed_at", "stream_id", "policy", "storage_backend"} {
		t.Run(field, func(t *testing.T) {
			record := metricsRecord()
			delete(record, field)
			_, err := ParseMetricsRecord(record)
			if err == nil || !strings.Contains(err.Error(), field) {
				t.Errorf("error = %v, want mention of %s", err, field)
			}
		})
	}
}

func TestParseMetricsRecord_Nil(t *testing.T) {
	if _, err := ParseMetricsRecord(nil); err == nil {
		t.Error("expected error for nil record")
	}
}
