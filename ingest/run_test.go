package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/flight/adapter"
	"github.com/pithecene-io/flight/flight"
	"github.com/pithecene-io/flight/ipc"
	"github.com/pithecene-io/flight/metrics"
	"github.com/pithecene-io/flight/policy"
	"github.com/pithecene-io/flight/types"
)

type stubMetricsWriter struct {
	snaps   []metrics.Snapshot
	ctxErrs []error
	err     error
}

func (w *stubMetricsWriter) WriteMetrics(ctx context.Context, snap metrics.Snapshot, _ time.Time) error {
	w.snaps = append(w.snaps, snap)
	w.ctxErrs = append(w.ctxErrs, ctx.Err())
	return w.err
}

type stubAdapter struct {
	events  []*adapter.StreamCompletedEvent
	ctxErrs []error
	err     error
}

func (a *stubAdapter) Publish(ctx context.Context, event *adapter.StreamCompletedEvent) error {
	a.events = append(a.events, event)
	a.ctxErrs = append(a.ctxErrs, ctx.Err())
	return a.err
}

func (a *stubAdapter) Close() error { return nil }

func TestRun_Success(t *testing.T) {
	var export bytes.Buffer
	collector := metrics.NewCollector("strict", "memory", "s-1", "fixture")
	mw := &stubMetricsWriter{}
	ad := &stubAdapter{}

	result, err := Run(t.Context(), RunConfig{
		StreamID: "s-1",
		Source:   "fixture",
		Day:      "2026-10-19",
		Input:    strings.NewReader(textStream),
		Engine: EngineConfig{
			Policy: policy.NewStrictPolicy(policy.NewStubSink()),
			Export: ipc.NewFrameEncoder(&export),
		},
		Collector:     collector,
		MetricsWriter: mw,
		Adapter:       ad,
		StoragePath:   "file:///data",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Outcome.Status != adapter.OutcomeSuccess || result.ExitCode() != ExitCodeSuccess {
		t.Errorf("outcome = %+v, exit = %d", result.Outcome, result.ExitCode())
	}
	if result.ChunkCount != 5 || result.ByKind["console"] != 1 {
		t.Errorf("result = %+v", result)
	}
	if result.Metrics.StreamsCompleted != 1 || result.Metrics.ChunksPersisted != 5 {
		t.Errorf("metrics = %+v", result.Metrics)
	}

	if len(mw.snaps) != 1 || mw.snaps[0].RowsDecoded != 5 {
		t.Errorf("metrics writes = %+v", mw.snaps)
	}
	if len(ad.events) != 1 {
		t.Fatalf("adapter events = %d, want 1", len(ad.events))
	}
	ev := ad.events[0]
	if ev.StreamID != "s-1" || ev.Outcome != adapter.OutcomeSuccess || ev.ChunkCount != 5 || ev.StoragePath != "file:///data" {
		t.Errorf("event = %+v", ev)
	}

	chunks, end, err := ipc.ReadAll(&export)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(chunks) != 5 || end == nil || end.ChunkCount != 5 || end.Error != "" {
		t.Errorf("export = %d chunks, end = %+v", len(chunks), end)
	}
}

func TestRun_FailureOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		sinkErr    error
		wantStatus string
		wantExit   int
	}{
		{"framing error", "0:1\nzz\n", nil, adapter.OutcomeFramingError, ExitCodeFramingError},
		{"incomplete row", "0:1\n1:\"open", nil, adapter.OutcomeIncomplete, ExitCodeFramingError},
		{"policy failure", "0:1\n", errors.New("store down"), adapter.OutcomePolicyError, ExitCodePolicyFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := policy.NewStubSink()
			sink.SetError(tt.sinkErr)
			collector := metrics.NewCollector("strict", "memory", "s-1", "fixture")
			ad := &stubAdapter{}

			result, err := Run(t.Context(), RunConfig{
				StreamID:  "s-1",
				Input:     strings.NewReader(tt.input),
				Engine:    EngineConfig{Mode: ModeFragment, Policy: policy.NewStrictPolicy(sink)},
				Collector: collector,
				Adapter:   ad,
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if result.Outcome.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", result.Outcome.Status, tt.wantStatus)
			}
			if result.ExitCode() != tt.wantExit {
				t.Errorf("exit = %d, want %d", result.ExitCode(), tt.wantExit)
			}
			if result.Err == nil {
				t.Error("result.Err should be set")
			}
			if result.Metrics.StreamsFailed != 1 {
				t.Error("failed stream not counted")
			}
			if len(ad.events) != 1 || ad.events[0].Outcome != tt.wantStatus {
				t.Errorf("adapter events = %+v", ad.events)
			}
		})
	}
}

func TestRun_NotificationFailureIsNotFatal(t *testing.T) {
	result, err := Run(t.Context(), RunConfig{
		StreamID:      "s-1",
		Input:         strings.NewReader("0:1\n"),
		Engine:        EngineConfig{Policy: policy.NewNoopPolicy()},
		MetricsWriter: &stubMetricsWriter{err: errors.New("lode down")},
		Adapter:       &stubAdapter{err: errors.New("redis down")},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Outcome.Status != adapter.OutcomeSuccess {
		t.Errorf("status = %q, want success", result.Outcome.Status)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	if _, err := Run(t.Context(), RunConfig{Engine: EngineConfig{Policy: policy.NewNoopPolicy()}}); !errors.Is(err, ErrMissingInput) {
		t.Errorf("err = %v, want ErrMissingInput", err)
	}
	if _, err := Run(t.Context(), RunConfig{Input: strings.NewReader("")}); !errors.Is(err, ErrMissingPolicy) {
		t.Errorf("err = %v, want ErrMissingPolicy", err)
	}
}

func TestDetermineOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, adapter.OutcomeSuccess},
		{"framing", &IngestionError{Kind: IngestionErrorStream, Err: &flight.FramingError{Kind: flight.FramingErrorInvalidHexDigit}}, adapter.OutcomeFramingError},
		{"incomplete", &IngestionError{Kind: IngestionErrorStream, Err: &flight.IncompleteRowError{ID: "1"}}, adapter.OutcomeIncomplete},
		{"policy", &IngestionError{Kind: IngestionErrorPolicy, Err: errors.New("x")}, adapter.OutcomePolicyError},
		{"canceled", &IngestionError{Kind: IngestionErrorCanceled, Err: context.Canceled}, adapter.OutcomeCanceled},
		{"read", &IngestionError{Kind: IngestionErrorRead, Err: errors.New("x")}, adapter.OutcomeIOError},
		{"export", &IngestionError{Kind: IngestionErrorExport, Err: errors.New("x")}, adapter.OutcomeIOError},
		{"unclassified", errors.New("x"), adapter.OutcomeIOError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineOutcome(tt.err); got.Status != tt.want {
				t.Errorf("DetermineOutcome = %q, want %q", got.Status, tt.want)
			}
		})
	}

	for status, want := range map[string]int{
		adapter.OutcomeSuccess:      ExitCodeSuccess,
		adapter.OutcomeFramingError: ExitCodeFramingError,
		adapter.OutcomeIncomplete:   ExitCodeFramingError,
		adapter.OutcomePolicyError:  ExitCodePolicyFailure,
		adapter.OutcomeCanceled:     ExitCodeIOError,
		adapter.OutcomeIOError:      ExitCodeIOError,
	} {
		if got := ExitCode(status); got != want {
			t.Errorf("ExitCode(%q) = %d, want %d", status, got, want)
		}
	}
}

func TestWriteStreamReport(t *testing.T) {
	result, err := Run(t.Context(), RunConfig{
		StreamID: "s-1",
		Input:    strings.NewReader(textStream),
		Engine:   EngineConfig{Policy: policy.NewNoopPolicy()},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	report := BuildStreamReport(result, "fixture", "noop")

	var buf bytes.Buffer
	if err := writeStreamReportTo(report, &buf); err != nil {
		t.Fatalf("writeStreamReportTo: %v", err)
	}
	for _, want := range []string{`"stream_id": "s-1"`, `"outcome": "success"`, `"name": "noop"`, `"chunk_count": 5`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("report missing %s:\n%s", want, buf.String())
		}
	}

	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteStreamReport(report, path); err != nil {
		t.Fatalf("WriteStreamReport: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(data, buf.Bytes()) {
		t.Errorf("file report differs: %v", err)
	}
	if err := WriteStreamReport(report, ""); err == nil {
		t.Error("empty path must fail")
	}
}

// ctxSink refuses writes on a done context, like a storage client would.
type ctxSink struct {
	*policy.StubSink
}

func (s ctxSink) WriteChunks(ctx context.Context, chunks []*types.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.StubSink.WriteChunks(ctx, chunks)
}

// cancelOnRead cancels the run as soon as the first bytes are read.
type cancelOnRead struct {
	r      *strings.Reader
	cancel context.CancelFunc
}

func (c *cancelOnRead) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.cancel()
	return n, err
}

func TestRun_CanceledStillDrains(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	sink := ctxSink{policy.NewStubSink()}
	pol, err := policy.NewBufferedPolicy(sink, policy.BufferedConfig{MaxBufferChunks: 100})
	if err != nil {
		t.Fatalf("NewBufferedPolicy: %v", err)
	}
	mw := &stubMetricsWriter{}
	ad := &stubAdapter{}

	result, err := Run(ctx, RunConfig{
		StreamID:      "s-1",
		Source:        "fixture",
		Day:           "2026-10-19",
		Input:         &cancelOnRead{r: strings.NewReader(textStream), cancel: cancel},
		Engine:        EngineConfig{Policy: pol},
		Collector:     metrics.NewCollector("buffered", "memory", "s-1", "fixture"),
		MetricsWriter: mw,
		Adapter:       ad,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Outcome.Status != adapter.OutcomeCanceled {
		t.Fatalf("outcome = %+v, want canceled", result.Outcome)
	}
	if result.ChunkCount == 0 || result.ChunkCount == 5 {
		t.Fatalf("ChunkCount = %d, want a partial stream", result.ChunkCount)
	}
	if got := sink.Stats().ChunksWritten; got != result.ChunkCount {
		t.Errorf("sink ChunksWritten = %d, want %d buffered chunks flushed", got, result.ChunkCount)
	}

	if len(mw.ctxErrs) != 1 || mw.ctxErrs[0] != nil {
		t.Errorf("metrics write ctx errors = %v, want one live context", mw.ctxErrs)
	}
	if len(ad.ctxErrs) != 1 || ad.ctxErrs[0] != nil {
		t.Errorf("publish ctx errors = %v, want one live context", ad.ctxErrs)
	}
	if len(ad.events) == 1 && ad.events[0].Outcome != adapter.OutcomeCanceled {
		t.Errorf("event outcome = %q, want canceled", ad.events[0].Outcome)
	}
}
