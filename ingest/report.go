package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/pithecene-io/flight/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StreamReport is the JSON report written by --report.
type StreamReport struct {
	StreamID       string           `json:"stream_id"`
	Source         string           `json:"source,omitempty"`
	Outcome        string           `json:"outcome"`
	Message        string           `json:"message"`
	ExitCode       int              `json:"exit_code"`
	DurationMs     int64            `json:"duration_ms"`
	ChunkCount     int64            `json:"chunk_count"`
	ByKind         map[string]int64 `json:"by_kind"`
	BytesConsumed  int64            `json:"bytes_consumed"`
	ParseFallbacks int64            `json:"parse_fallbacks"`

	Policy  *ReportPolicy     `json:"policy"`
	Metrics *metrics.Snapshot `json:"metrics"`
}

// ReportPolicy holds policy stats in the report.
type ReportPolicy struct {
	Name            string           `json:"name"`
	ChunksReceived  int64            `json:"chunks_received"`
	ChunksPersisted int64            `json:"chunks_persisted"`
	ChunksDropped   int64            `json:"chunks_dropped"`
	DroppedByKind   map[string]int64 `json:"dropped_by_kind,omitempty"`
	FlushCount      int64            `json:"flush_count"`
}

// BuildStreamReport composes a report from a run result.
func BuildStreamReport(result *RunResult, source, policyName string) *StreamReport {
	snap := result.Metrics
	ps := result.PolicyStats
	return &StreamReport{
		StreamID:       result.StreamID,
		Source:         source,
		Outcome:        result.Outcome.Status,
		Message:        result.Outcome.Message,
		ExitCode:       result.ExitCode(),
		DurationMs:     result.Duration.Milliseconds(),
		ChunkCount:     result.ChunkCount,
		ByKind:         result.ByKind,
		BytesConsumed:  result.BytesConsumed,
		ParseFallbacks: result.ParseFallbacks,
		Policy: &ReportPolicy{
			Name:            policyName,
			ChunksReceived:  ps.TotalChunks,
			ChunksPersisted: ps.ChunksPersisted,
			ChunksDropped:   ps.ChunksDropped,
			DroppedByKind:   ps.DroppedByKindStrings(),
			FlushCount:      ps.FlushCount,
		},
		Metrics: &snap,
	}
}

// WriteStreamReport writes the report as indented JSON to path.
// A path of "-" writes to stderr.
func WriteStreamReport(report *StreamReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		if err := writeStreamReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeStreamReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return f.Close()
}

func writeStreamReportTo(report *StreamReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
