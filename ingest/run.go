package ingest

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/pithecene-io/flight/adapter"
	"github.com/pithecene-io/flight/ipc"
	"github.com/pithecene-io/flight/log"
	"github.com/pithecene-io/flight/metrics"
	"github.com/pithecene-io/flight/policy"
	"github.com/pithecene-io/flight/types"
)

// MetricsWriter persists the end-of-stream metrics snapshot.
// Implemented by *lode.LodeClient.
type MetricsWriter interface {
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error
}

// RunConfig configures a single stream run.
type RunConfig struct {
	// StreamID identifies this run (required).
	StreamID string
	// Source names where the input came from.
	Source string
	// Day is the partition day reported in notifications.
	Day string
	// Input is the Flight stream.
	Input io.Reader
	// Engine configures decoding. Its Logger and Collector default to the
	// ones below.
	Engine EngineConfig
	// Logger defaults to a no-op logger.
	Logger *log.Logger
	// Collector may be nil.
	Collector *metrics.Collector
	// MetricsWriter, if set, receives the final metrics snapshot.
	MetricsWriter MetricsWriter
	// Adapter, if set, is notified once the stream ends.
	Adapter adapter.Adapter
	// StoragePath is reported in the notification.
	StoragePath string
}

// RunResult is the result of one stream run.
type RunResult struct {
	StreamID       string
	Outcome        Outcome
	Err            error
	Duration       time.Duration
	ChunkCount     int64
	ByKind         map[string]int64
	BytesConsumed  int64
	ParseFallbacks int64
	PolicyStats    policy.Stats
	Metrics        metrics.Snapshot
}

// ExitCode is the process exit code for the run.
func (r *RunResult) ExitCode() int {
	return ExitCode(r.Outcome.Status)
}

// ErrMissingInput is returned by Run when no input reader is configured.
var ErrMissingInput = errors.New("run requires an input reader")

// ErrMissingPolicy is returned by Run when no policy is configured.
var ErrMissingPolicy = errors.New("run requires a policy")

// Run decodes one stream end-to-end.
//
// Execution flow:
//  1. Feed the input through the engine
//  2. Close the export with a stream_end frame
//  3. Classify the outcome and fill the collector
//  4. Persist metrics, then publish the completion event
//
// The returned error is only set for invalid configuration; stream failures
// are reported through RunResult.Outcome and RunResult.Err. The caller owns
// and closes the policy.
func Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if cfg.Input == nil {
		return nil, ErrMissingInput
	}
	if cfg.Engine.Policy == nil {
		return nil, ErrMissingPolicy
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Engine.Logger == nil {
		cfg.Engine.Logger = logger
	}
	if cfg.Engine.Collector == nil {
		cfg.Engine.Collector = cfg.Collector
	}

	start := time.Now()
	cfg.Collector.IncStreamStarted()
	logger.Info("starting stream", map[string]any{
		"dev":  cfg.Engine.Dev,
		"mode": modeName(cfg.Engine.Mode),
	})

	engine := NewEngine(cfg.Input, cfg.Engine)
	runErr := engine.Run(ctx)
	resp := engine.Response()
	outcome := DetermineOutcome(runErr)

	if cfg.Engine.Export != nil {
		end := ipc.StreamEndFrame{
			StreamID:       cfg.StreamID,
			Source:         cfg.Source,
			ChunkCount:     int64(resp.Len()),
			ByKind:         countByKind(resp.Chunks()),
			BytesConsumed:  resp.Consumed(),
			ParseFallbacks: resp.Fallbacks(),
		}
		if runErr != nil {
			end.Error = runErr.Error()
		}
		if err := cfg.Engine.Export.WriteStreamEnd(end); err != nil {
			logger.Error("export close failed", map[string]any{"error": err.Error()})
			if runErr == nil {
				runErr = &IngestionError{Kind: IngestionErrorExport, Err: err}
				outcome = DetermineOutcome(runErr)
			}
		}
	}

	result := &RunResult{
		StreamID:       cfg.StreamID,
		Outcome:        outcome,
		Err:            runErr,
		Duration:       time.Since(start),
		ChunkCount:     int64(resp.Len()),
		ByKind:         countByKind(resp.Chunks()),
		BytesConsumed:  resp.Consumed(),
		ParseFallbacks: resp.Fallbacks(),
		PolicyStats:    cfg.Engine.Policy.Stats(),
	}

	if outcome.Status == adapter.OutcomeSuccess {
		cfg.Collector.IncStreamCompleted()
	} else {
		cfg.Collector.IncStreamFailed()
	}
	ps := result.PolicyStats
	cfg.Collector.AbsorbPolicyStats(ps.TotalChunks, ps.ChunksPersisted, ps.ChunksDropped, ps.DroppedByKindStrings())
	result.Metrics = cfg.Collector.Snapshot()

	logger.Info("stream completed", map[string]any{
		"outcome":  outcome.Status,
		"chunks":   result.ChunkCount,
		"consumed": result.BytesConsumed,
		"duration": result.Duration.String(),
	})

	drainCtx, cancel := DrainContext(ctx)
	defer cancel()

	finishedAt := time.Now()
	if cfg.MetricsWriter != nil {
		if err := cfg.MetricsWriter.WriteMetrics(drainCtx, result.Metrics, finishedAt); err != nil {
			logger.Error("metrics write failed", map[string]any{"error": err.Error()})
		}
	}
	if cfg.Adapter != nil {
		event := adapter.NewStreamCompletedEvent(cfg.StreamID, cfg.Source, cfg.Day, outcome.Status, finishedAt, result.Duration)
		event.StoragePath = cfg.StoragePath
		event.ChunkCount = result.ChunkCount
		event.ByKind = result.ByKind
		if err := cfg.Adapter.Publish(drainCtx, event); err != nil {
			logger.Warn("completion notification failed", map[string]any{"error": err.Error()})
		}
	}

	return result, nil
}

func countByKind(chunks []types.Chunk) map[string]int64 {
	counts := make(map[string]int64)
	for _, c := range chunks {
		counts[string(c.Kind)]++
	}
	return counts
}

func modeName(m Mode) string {
	if m == ModeFragment {
		return "fragment"
	}
	return "line"
}
