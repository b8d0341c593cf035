package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flight/adapter"
	"github.com/pithecene-io/flight/cli/config"
	"github.com/pithecene-io/flight/cli/reader"
	"github.com/pithecene-io/flight/cli/render"
	"github.com/pithecene-io/flight/cli/tui"
	"github.com/pithecene-io/flight/ingest"
	"github.com/pithecene-io/flight/iox"
	"github.com/pithecene-io/flight/ipc"
	"github.com/pithecene-io/flight/lode"
	"github.com/pithecene-io/flight/log"
	"github.com/pithecene-io/flight/metrics"
	"github.com/pithecene-io/flight/policy"
	"github.com/pithecene-io/flight/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// inputFilename is the sidecar name of the raw stream saved by --save-input.
const inputFilename = "input.flight"

// subscriberBuffer is the capacity of the decoded-chunk channel.
const subscriberBuffer = 64

// DecodeCommand returns the decode command.
// Decode is the only command that writes: to Lode, to an export and to the
// completion adapter.
func DecodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a Flight stream into chunks",
		ArgsUsage: "<file|->",
		Flags: append(ReadOnlyFlags(),
			// Input flags
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a flight.yaml with default flag values",
			},
			&cli.StringFlag{
				Name:  "stream-id",
				Usage: "Stream ID (default: random UUID)",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Source identifier for partitioning (default: input file name or \"stdin\")",
			},
			&cli.BoolFlag{
				Name:  "dev",
				Usage: "Decode development variants of error and postpone rows",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Input feeding: line or fragment (required for binary rows)",
				Value: "line",
			},
			&cli.IntFlag{
				Name:  "fragment-size",
				Usage: "Read size in fragment mode",
				Value: ingest.DefaultFragmentSize,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
				Value: "info",
			},
			// Output flags
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the chunk log and summary",
			},
			&cli.BoolFlag{
				Name:  "follow",
				Usage: "Print each chunk as a JSON line as soon as it is decoded",
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "Write decoded chunks as a msgpack frame export (\"-\" for stdout)",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON stream report (\"-\" for stderr)",
			},
			// Policy flags
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Persistence policy: strict, buffered, streaming or noop",
			},
			&cli.IntFlag{
				Name:  "buffer-chunks",
				Usage: "Max buffered chunks (buffered policy)",
			},
			&cli.Int64Flag{
				Name:  "buffer-bytes",
				Usage: "Max buffer size in bytes (buffered policy)",
			},
			&cli.IntFlag{
				Name:  "flush-count",
				Usage: "Flush after this many chunks (streaming policy)",
			},
			&cli.DurationFlag{
				Name:  "flush-interval",
				Usage: "Flush at this interval (streaming policy)",
			},
			// Lode storage flags
			&cli.StringFlag{
				Name:  "lode-backend",
				Usage: "Lode storage backend: fs, s3 or memory (default: no persistence)",
			},
			&cli.StringFlag{
				Name:  "lode-path",
				Usage: "Lode storage path (fs: directory, s3: bucket/prefix)",
			},
			&cli.StringFlag{
				Name:  "dataset",
				Usage: "Lode dataset ID",
				Value: lode.DefaultDataset,
			},
			&cli.StringFlag{
				Name:  "lode-s3-region",
				Usage: "AWS region for S3 backend (optional, uses default chain)",
			},
			&cli.StringFlag{
				Name:  "lode-s3-endpoint",
				Usage: "Custom S3 endpoint (MinIO, R2)",
			},
			&cli.BoolFlag{
				Name:  "lode-s3-path-style",
				Usage: "Use path-style S3 addressing",
			},
			&cli.BoolFlag{
				Name:  "save-input",
				Usage: "Store the raw input next to the chunk records",
			},
			// Adapter flags
			&cli.StringFlag{
				Name:  "adapter",
				Usage: "Completion adapter: webhook or redis",
			},
			&cli.StringFlag{
				Name:  "adapter-url",
				Usage: "Webhook endpoint or Redis URL",
			},
			&cli.StringFlag{
				Name:  "adapter-channel",
				Usage: "Redis pub/sub channel",
			},
			&cli.StringSliceFlag{
				Name:  "adapter-header",
				Usage: "Webhook header as Key=Value (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "adapter-timeout",
				Usage: "Per-attempt notification timeout",
			},
			&cli.IntFlag{
				Name:  "adapter-retries",
				Usage: "Notification retry attempts",
			},
		),
		Action: decodeAction,
	}
}

// inputChoice holds parsed input configuration.
type inputChoice struct {
	path         string
	streamID     string
	source       string
	dev          bool
	mode         ingest.Mode
	fragmentSize int
	logLevel     string
}

// outputChoice holds parsed output configuration.
type outputChoice struct {
	quiet     bool
	follow    bool
	tui       bool
	export    string
	report    string
	saveInput bool
}

func decodeAction(c *cli.Context) error {
	cfg, err := loadDecodeConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ingest.ExitCodeIOError)
	}

	input, err := resolveInput(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), ingest.ExitCodeIOError)
	}
	output := outputChoice{
		quiet:     c.Bool("quiet"),
		follow:    c.Bool("follow"),
		tui:       c.Bool("tui"),
		export:    c.String("export"),
		report:    c.String("report"),
		saveInput: c.Bool("save-input"),
	}
	if err := validateOutputChoice(output); err != nil {
		return cli.Exit(err.Error(), ingest.ExitCodeIOError)
	}

	storage := resolveStorage(c, cfg)
	if err := storage.validate(); err != nil {
		return cli.Exit(err.Error(), ingest.ExitCodeIOError)
	}
	if output.saveInput && !storage.enabled() {
		return cli.Exit("--save-input requires --lode-backend", ingest.ExitCodeIOError)
	}

	choice := resolvePolicy(c, cfg, storage)
	if err := validatePolicyChoice(choice, storage, os.Stderr); err != nil {
		return cli.Exit(fmt.Sprintf("invalid policy config: %v", err), ingest.ExitCodeIOError)
	}

	adapterType := resolveString(c, "adapter", configVal(cfg, func(c *config.Config) string { return c.Adapter.Type }))
	adapterCfg, err := parseAdapterConfigWithPrecedence(c, cfg, adapterType)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid adapter config: %v", err), ingest.ExitCodeIOError)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, rows, err := runDecode(ctx, input, output, storage, choice, adapterCfg)
	if err != nil {
		return cli.Exit(err.Error(), ingest.ExitCodeIOError)
	}

	if output.report != "" {
		report := ingest.BuildStreamReport(result, input.source, choice.name)
		if err := ingest.WriteStreamReport(report, output.report); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	if !output.quiet && !output.follow && output.export != iox.StdioPath {
		if err := renderChunkLog(c, output, rows); err != nil {
			return err
		}
	}
	if !output.quiet {
		printDecodeResult(os.Stderr, result, choice)
	}

	return cli.Exit("", result.ExitCode())
}

func loadDecodeConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return nil, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func resolveInput(c *cli.Context, cfg *config.Config) (inputChoice, error) {
	if c.NArg() != 1 {
		return inputChoice{}, fmt.Errorf("decode requires exactly one input argument (<file> or -)")
	}
	in := inputChoice{
		path:         c.Args().First(),
		streamID:     c.String("stream-id"),
		source:       resolveString(c, "source", configVal(cfg, func(c *config.Config) string { return c.Source })),
		dev:          resolveBool(c, "dev", configVal(cfg, func(c *config.Config) *bool { return c.Dev })),
		fragmentSize: resolveInt(c, "fragment-size", configVal(cfg, func(c *config.Config) int { return c.FragmentSize })),
		logLevel:     resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.LogLevel })),
	}
	if in.streamID == "" {
		in.streamID = uuid.NewString()
	}
	if in.source == "" {
		in.source = defaultSource(in.path)
	}
	if in.fragmentSize <= 0 {
		return inputChoice{}, fmt.Errorf("--fragment-size must be > 0, got %d", in.fragmentSize)
	}

	switch mode := resolveString(c, "mode", configVal(cfg, func(c *config.Config) string { return c.Mode })); mode {
	case "line":
		in.mode = ingest.ModeLine
	case "fragment":
		in.mode = ingest.ModeFragment
	default:
		return inputChoice{}, fmt.Errorf("invalid mode: %s (must be line or fragment)", mode)
	}
	return in, nil
}

// defaultSource names the stream after its input file.
func defaultSource(path string) string {
	if path == iox.StdioPath {
		return "stdin"
	}
	return filepath.Base(path)
}

func validateOutputChoice(o outputChoice) error {
	if o.tui && (o.follow || o.quiet) {
		return fmt.Errorf("--tui cannot be combined with --follow or --quiet")
	}
	if o.export == iox.StdioPath && (o.follow || o.tui) {
		return fmt.Errorf("--export - writes to stdout and cannot be combined with --follow or --tui")
	}
	return nil
}

// runDecode wires storage, policy, export and adapter around ingest.Run and
// returns the run result with the chunk log. The error is set only when the
// run could not be set up.
func runDecode(ctx context.Context, in inputChoice, out outputChoice, storage storageChoice, choice policyChoice, adapterCfg *adapterChoice) (*ingest.RunResult, []reader.ChunkRow, error) {
	start := time.Now()
	logger := log.NewLogger(log.StreamMeta{StreamID: in.streamID, Source: in.source}).WithLevel(in.logLevel)
	defer iox.DiscardErr(logger.Sync)
	collector := metrics.NewCollector(choice.name, storage.backendName(), in.streamID, in.source)

	lodeCfg := lode.Config{
		Dataset:  storage.dataset,
		Source:   in.source,
		Day:      lode.DeriveDay(start),
		StreamID: in.streamID,
		Policy:   choice.name,
	}

	var client *lode.LodeClient
	var sink policy.Sink
	if storage.enabled() {
		var err error
		client, err = buildLodeClient(ctx, storage, lodeCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Lode client: %w", err)
		}
		sink = lode.NewInstrumentedSink(lode.NewSink(lodeCfg, client), collector)
	}

	pol, err := buildPolicy(choice, sink, logger)
	if err != nil {
		if sink != nil {
			iox.DiscardErr(sink.Close)
		}
		return nil, nil, fmt.Errorf("failed to create policy: %w", err)
	}
	defer func() {
		if err := pol.Close(); err != nil {
			logger.Warn("policy close failed", map[string]any{"error": err.Error()})
		}
	}()

	var notifier adapter.Adapter
	if adapterCfg != nil {
		notifier, err = buildAdapter(adapterCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create adapter: %w", err)
		}
		defer iox.DiscardClose(notifier)
	}

	src, err := iox.OpenInput(in.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer iox.DiscardClose(src)

	var raw bytes.Buffer
	var stream io.Reader = src
	if out.saveInput {
		stream = io.TeeReader(src, &raw)
	}

	var export *ipc.FrameEncoder
	if out.export != "" {
		w, err := iox.CreateOutput(out.export)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create export: %w", err)
		}
		defer iox.DiscardClose(w)
		export = ipc.NewFrameEncoder(w)
	}

	chunks := make(chan types.Chunk, subscriberBuffer)
	var rows []reader.ChunkRow
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rows = collectRows(chunks, out.follow, os.Stdout, logger)
	}()

	runCfg := ingest.RunConfig{
		StreamID: in.streamID,
		Source:   in.source,
		Day:      lodeCfg.Day,
		Input:    stream,
		Engine: ingest.EngineConfig{
			Dev:          in.dev,
			Mode:         in.mode,
			FragmentSize: in.fragmentSize,
			Policy:       pol,
			Export:       export,
			Subscriber:   chunks,
		},
		Logger:    logger,
		Collector: collector,
		Adapter:   notifier,
	}
	if client != nil {
		runCfg.MetricsWriter = client
		runCfg.StoragePath = storagePath(storage, lodeCfg)
	}

	result, err := ingest.Run(ctx, runCfg)
	close(chunks)
	wg.Wait()
	if err != nil {
		return nil, nil, err
	}

	if out.saveInput && client != nil {
		saveCtx, cancel := ingest.DrainContext(ctx)
		saveInput(saveCtx, client, raw.Bytes(), logger)
		cancel()
	}
	return result, rows, nil
}

// saveInput stores the raw stream as a sidecar file. Failures are logged;
// the chunks are already persisted.
func saveInput(ctx context.Context, fw lode.FileWriter, data []byte, logger *log.Logger) {
	if err := fw.PutFile(ctx, inputFilename, "text/x-component", data); err != nil {
		logger.Warn("saving raw input failed", map[string]any{"error": err.Error()})
	}
}

// collectRows drains decoded chunks into the chunk log, printing each row
// as a JSON line when follow is set.
func collectRows(chunks <-chan types.Chunk, follow bool, w io.Writer, logger *log.Logger) []reader.ChunkRow {
	var rows []reader.ChunkRow
	enc := json.NewEncoder(w)
	for c := range chunks {
		row := reader.NewChunkRow(int64(len(rows)), &c)
		rows = append(rows, row)
		if follow {
			if err := enc.Encode(row); err != nil {
				logger.Warn("follow output failed", map[string]any{"error": err.Error()})
				follow = false
			}
		}
	}
	return rows
}

// storagePath is the stream's partition location reported to adapters.
func storagePath(s storageChoice, cfg lode.Config) string {
	partition := fmt.Sprintf("datasets/%s/partitions/source=%s/day=%s/stream_id=%s",
		cfg.Dataset, cfg.Source, cfg.Day, cfg.StreamID)
	switch s.backend {
	case "s3":
		return "s3://" + s.path + "/" + partition
	case "memory":
		return "memory://" + partition
	default:
		return filepath.Join(s.path, partition)
	}
}

func renderChunkLog(c *cli.Context, out outputChoice, rows []reader.ChunkRow) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if out.tui {
		return r.RenderTUI(tui.ViewChunks, rows)
	}
	if rows == nil {
		rows = []reader.ChunkRow{}
	}
	return r.Render(rows)
}

func printDecodeResult(w io.Writer, result *ingest.RunResult, choice policyChoice) {
	_, _ = fmt.Fprintf(w, "\nstream_id=%s, outcome=%s, duration=%s\n",
		result.StreamID,
		result.Outcome.Status,
		result.Duration.Round(time.Millisecond),
	)

	ps := result.PolicyStats
	switch choice.name {
	case "buffered", "streaming":
		_, _ = fmt.Fprintf(w, "policy=%s, persisted=%d, drops=%d, flushes=%d\n",
			choice.name, ps.ChunksPersisted, ps.ChunksDropped, ps.FlushCount)
	default:
		_, _ = fmt.Fprintf(w, "policy=%s, persisted=%d\n", choice.name, ps.ChunksPersisted)
	}

	_, _ = fmt.Fprintf(w, "chunks=%d, consumed=%d bytes, parse_fallbacks=%d\n",
		result.ChunkCount, result.BytesConsumed, result.ParseFallbacks)
	if result.Outcome.Status != adapter.OutcomeSuccess {
		_, _ = fmt.Fprintf(w, "error: %s\n", result.Outcome.Message)
	}
}
