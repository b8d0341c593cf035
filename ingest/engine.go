// Package ingest drives a flight.Response from an io.Reader.
//
// The Engine reads the input in lines or fixed-size fragments, feeds every
// fragment to the decoder, and forwards newly completed chunks to a
// persistence policy, an optional export encoder and an optional subscriber
// channel. Run wraps the engine with outcome classification, metrics and
// completion notification.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pithecene-io/flight/flight"
	"github.com/pithecene-io/flight/ipc"
	"github.com/pithecene-io/flight/log"
	"github.com/pithecene-io/flight/metrics"
	"github.com/pithecene-io/flight/policy"
	"github.com/pithecene-io/flight/types"
)

// Mode selects how input is split into fragments.
type Mode int

const (
	// ModeLine feeds one line at a time with "\n" appended, skipping blank
	// lines. Suitable for text-only streams.
	ModeLine Mode = iota
	// ModeFragment feeds fixed-size reads. Required for streams carrying
	// length-prefixed binary rows.
	ModeFragment
)

// DefaultFragmentSize is the read size used in fragment mode.
const DefaultFragmentSize = 4096

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Dev selects the development variants of error and postpone chunks.
	Dev bool
	// Mode selects line or fragment feeding.
	Mode Mode
	// FragmentSize is the read size in fragment mode.
	FragmentSize int
	// Policy receives every decoded chunk. Required.
	Policy policy.Policy
	// Export, if set, receives every decoded chunk as a frame.
	Export *ipc.FrameEncoder
	// Subscriber, if set, receives a copy of every decoded chunk.
	// The engine never closes it.
	Subscriber chan<- types.Chunk
	// Logger defaults to a no-op logger.
	Logger *log.Logger
	// Collector may be nil.
	Collector *metrics.Collector
}

// Engine feeds one input stream through a flight.Response.
type Engine struct {
	reader    *bufio.Reader
	config    EngineConfig
	logger    *log.Logger
	response  *flight.Response
	buf       []byte
	forwarded int
}

// NewEngine creates an engine reading from r.
func NewEngine(r io.Reader, cfg EngineConfig) *Engine {
	if cfg.FragmentSize <= 0 {
		cfg.FragmentSize = DefaultFragmentSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		reader:   bufio.NewReaderSize(r, max(cfg.FragmentSize, 4096)),
		config:   cfg,
		logger:   logger,
		response: flight.New(cfg.Dev),
		buf:      make([]byte, cfg.FragmentSize),
	}
}

// Response returns the decoder state.
func (e *Engine) Response() *flight.Response {
	return e.response
}

// Forwarded returns the number of chunks handed to the policy.
func (e *Engine) Forwarded() int {
	return e.forwarded
}

// DrainTimeout bounds the work done after ingestion stops: the final policy
// flush, the metrics write and the completion notification.
const DrainTimeout = 30 * time.Second

// DrainContext keeps ctx's values but not its cancellation, so a stream
// interrupted by a signal still persists what it decoded.
func DrainContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), DrainTimeout)
}

// Run reads the input until EOF or a fatal error, then flushes the policy
// on a DrainContext.
// Returns:
//   - nil: every row completed and was persisted
//   - *IngestionError with Kind=IngestionErrorStream: framing error or truncated row
//   - *IngestionError with Kind=IngestionErrorPolicy: policy or flush failure
//   - *IngestionError with Kind=IngestionErrorCanceled: context canceled
//   - *IngestionError with Kind=IngestionErrorRead: input I/O failure
//   - *IngestionError with Kind=IngestionErrorExport: export write failure
func (e *Engine) Run(ctx context.Context) error {
	runErr := e.ingest(ctx)

	// A policy failure already means the sink is unusable.
	if runErr != nil && IsPolicyError(runErr) {
		return runErr
	}
	flushCtx, cancel := DrainContext(ctx)
	err := e.config.Policy.Flush(flushCtx)
	cancel()
	if err != nil {
		e.logger.Error("policy flush failed", map[string]any{
			"error": err.Error(),
		})
		if runErr == nil {
			runErr = &IngestionError{Kind: IngestionErrorPolicy, Err: fmt.Errorf("policy flush failed: %w", err)}
		}
	}
	return runErr
}

func (e *Engine) ingest(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return &IngestionError{Kind: IngestionErrorCanceled, Err: err}
		}

		fragment, readErr := e.next()
		if len(fragment) > 0 {
			if err := e.feed(ctx, fragment); err != nil {
				return err
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			return e.finish()
		}
		e.logger.Error("input read failed", map[string]any{
			"error":    readErr.Error(),
			"consumed": e.response.Consumed(),
		})
		return &IngestionError{Kind: IngestionErrorRead, Err: fmt.Errorf("read input: %w", readErr)}
	}
}

// next returns the next fragment. It may return data together with io.EOF.
func (e *Engine) next() ([]byte, error) {
	if e.config.Mode == ModeFragment {
		n, err := e.reader.Read(e.buf)
		return e.buf[:n], err
	}

	for {
		line, err := e.reader.ReadBytes('\n')
		line = bytes.TrimSuffix(line, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}
		return append(line, '\n'), err
	}
}

// feed pushes one fragment into the decoder and forwards completed chunks.
// Chunks completed before a framing error in the same fragment are still
// forwarded.
func (e *Engine) feed(ctx context.Context, fragment []byte) error {
	e.config.Collector.AddFragment(len(fragment))
	e.response.Tick()

	before := e.response.Len()
	feedErr := e.response.Feed(fragment)
	fresh := e.response.ChunksSince(before)
	e.config.Collector.SetParseFallbacks(e.response.Fallbacks())

	for i := range fresh {
		if err := e.forward(ctx, &fresh[i]); err != nil {
			return err
		}
	}

	if feedErr != nil {
		e.config.Collector.IncFramingError()
		fields := map[string]any{"error": feedErr.Error()}
		var fe *flight.FramingError
		if errors.As(feedErr, &fe) {
			fields["offset"] = fe.Offset
			fields["byte"] = fmt.Sprintf("%q", fe.Byte)
		}
		e.logger.Error("framing error", fields)
		return &IngestionError{Kind: IngestionErrorStream, Err: feedErr}
	}
	return nil
}

func (e *Engine) forward(ctx context.Context, c *types.Chunk) error {
	e.config.Collector.IncChunk(string(c.Kind))

	if c.Kind.IsError() {
		e.logger.Warn("error row decoded", map[string]any{
			"id":   c.ID,
			"kind": string(c.Kind),
		})
	}

	if e.config.Export != nil {
		if err := e.config.Export.WriteChunk(c); err != nil {
			e.logger.Error("export write failed", map[string]any{
				"id":    c.ID,
				"error": err.Error(),
			})
			return &IngestionError{Kind: IngestionErrorExport, Err: fmt.Errorf("export: %w", err)}
		}
	}

	if e.config.Subscriber != nil {
		select {
		case e.config.Subscriber <- *c:
		case <-ctx.Done():
			return &IngestionError{Kind: IngestionErrorCanceled, Err: ctx.Err()}
		}
	}

	if err := e.config.Policy.IngestChunk(ctx, c); err != nil {
		e.logger.Error("policy ingestion failed", map[string]any{
			"id":    c.ID,
			"kind":  string(c.Kind),
			"error": err.Error(),
		})
		return &IngestionError{Kind: IngestionErrorPolicy, Err: fmt.Errorf("policy failure: %w", err)}
	}
	e.forwarded++
	return nil
}

// finish signals end of input to the decoder.
func (e *Engine) finish() error {
	err := e.response.Finish()
	if err == nil {
		e.logger.Debug("input complete", map[string]any{
			"rows":     e.response.Len(),
			"consumed": e.response.Consumed(),
		})
		return nil
	}

	var incomplete *flight.IncompleteRowError
	if errors.As(err, &incomplete) {
		e.config.Collector.IncIncompleteRow()
		e.logger.Warn("input ended mid-row", map[string]any{
			"id":       incomplete.ID,
			"phase":    incomplete.Phase.String(),
			"buffered": incomplete.Buffered,
		})
	}
	return &IngestionError{Kind: IngestionErrorStream, Err: err}
}
