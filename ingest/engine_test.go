package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/pithecene-io/flight/flight"
	"github.com/pithecene-io/flight/ipc"
	"github.com/pithecene-io/flight/log"
	"github.com/pithecene-io/flight/metrics"
	"github.com/pithecene-io/flight/policy"
	"github.com/pithecene-io/flight/types"
)

// textStream contains only newline-delimited rows and one blank line.
const textStream = "0:{\"a\":1}\n" +
	"\n" +
	"1:I[\"./a.js\",\"Button\"]\r\n" +
	"2:HL[\"/style.css\",\"style\"]\n" +
	"3:W[\"log\",null,null,\"Server\",\"hi\"]\n" +
	"4:Thello"

// binaryStream needs fragment mode: the buffer row carries a raw '\n'.
const binaryStream = "1:o3,\x01\n\x02" + "2:\"after\"\n"

func newEngine(t *testing.T, input io.Reader, cfg EngineConfig) (*Engine, *policy.StubSink) {
	t.Helper()
	sink := policy.NewStubSink()
	if cfg.Policy == nil {
		cfg.Policy = policy.NewStrictPolicy(sink)
	}
	return NewEngine(input, cfg), sink
}

func kinds(chunks []types.Chunk) []types.ChunkKind {
	out := make([]types.ChunkKind, len(chunks))
	for i, c := range chunks {
		out[i] = c.Kind
	}
	return out
}

func TestEngine_LineMode(t *testing.T) {
	collector := metrics.NewCollector("strict", "memory", "s-1", "test")
	e, sink := newEngine(t, strings.NewReader(textStream), EngineConfig{Collector: collector})

	if err := e.Run(t.Context()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []types.ChunkKind{
		types.ChunkKindModel, types.ChunkKindModule, types.ChunkKindHint,
		types.ChunkKindConsole, types.ChunkKindText,
	}
	got := kinds(e.Response().Chunks())
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d kind = %s, want %s", i, got[i], want[i])
		}
	}

	// The last line has no newline; line mode appends one.
	if text := e.Response().Chunks()[4].Text; text != "hello" {
		t.Errorf("text = %q, want hello", text)
	}
	// The \r of a CRLF line is stripped before feeding.
	if body := e.Response().Chunks()[1].OriginalBody; strings.HasSuffix(body, "\r") {
		t.Errorf("module body kept the carriage return: %q", body)
	}
	if e.Forwarded() != 5 || sink.Stats().ChunksWritten != 5 {
		t.Errorf("forwarded = %d, written = %d, want 5", e.Forwarded(), sink.Stats().ChunksWritten)
	}

	// One tick per non-blank line.
	for i, c := range e.Response().Chunks() {
		if c.Timestamp != uint64(i+1) {
			t.Errorf("chunk %d timestamp = %d, want %d", i, c.Timestamp, i+1)
		}
	}

	snap := collector.Snapshot()
	if snap.FragmentsFed != 5 || snap.RowsDecoded != 5 || snap.ChunksByKind["hint"] != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestEngine_FragmentModeIsSplitInvariant(t *testing.T) {
	whole := flight.New(false)
	if err := whole.FeedString(binaryStream); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	want := whole.Chunks()

	for _, size := range []int{1, 2, 3, 5, 64} {
		e, _ := newEngine(t, strings.NewReader(binaryStream), EngineConfig{Mode: ModeFragment, FragmentSize: size})
		if err := e.Run(t.Context()); err != nil {
			t.Fatalf("size %d: Run() error = %v", size, err)
		}
		got := e.Response().Chunks()
		if len(got) != len(want) {
			t.Fatalf("size %d: %d chunks, want %d", size, len(got), len(want))
		}
		for i := range want {
			if got[i].Kind != want[i].Kind || got[i].OriginalBody != want[i].OriginalBody {
				t.Errorf("size %d chunk %d = %+v, want %+v", size, i, got[i], want[i])
			}
		}
		if !bytes.Equal(got[0].Data, []byte{1, '\n', 2}) {
			t.Errorf("size %d: buffer data = %v", size, got[0].Data)
		}
	}
}

func TestEngine_FramingError(t *testing.T) {
	var logs bytes.Buffer
	collector := metrics.NewCollector("strict", "memory", "s-1", "test")
	e, sink := newEngine(t, strings.NewReader("0:\"ok\"\nzz:1\n"), EngineConfig{
		Mode:         ModeFragment,
		FragmentSize: 64,
		Collector:    collector,
		Logger:       log.NewLogger(log.StreamMeta{StreamID: "s-1"}).WithOutput(&logs),
	})

	err := e.Run(t.Context())
	if !IsStreamError(err) {
		t.Fatalf("Run() error = %v, want stream error", err)
	}
	var fe *flight.FramingError
	if !errors.As(err, &fe) || fe.Offset != 7 {
		t.Errorf("framing error = %v, want offset 7", err)
	}
	// The row completed earlier in the same fragment is still persisted.
	if sink.Stats().ChunksWritten != 1 {
		t.Errorf("ChunksWritten = %d, want 1", sink.Stats().ChunksWritten)
	}
	if collector.Snapshot().FramingErrors != 1 {
		t.Error("framing error not counted")
	}
	if !strings.Contains(logs.String(), `"framing error"`) {
		t.Errorf("log output missing framing error: %s", logs.String())
	}
}

func TestEngine_IncompleteRow(t *testing.T) {
	collector := metrics.NewCollector("strict", "memory", "s-1", "test")
	e, _ := newEngine(t, strings.NewReader("0:\"ok\"\n1:o5,ab"), EngineConfig{Mode: ModeFragment, Collector: collector})

	err := e.Run(t.Context())
	if !IsStreamError(err) || !errors.Is(err, flight.ErrIncompleteRow) {
		t.Fatalf("Run() error = %v, want incomplete row", err)
	}
	var inc *flight.IncompleteRowError
	if !errors.As(err, &inc) || inc.ID != "1" || inc.Buffered != 2 {
		t.Errorf("incomplete = %+v", inc)
	}
	if collector.Snapshot().IncompleteRows != 1 {
		t.Error("incomplete row not counted")
	}
}

func TestEngine_ReadError(t *testing.T) {
	boom := errors.New("disk gone")
	input := io.MultiReader(strings.NewReader("0:1\n"), iotest.ErrReader(boom))
	e, sink := newEngine(t, input, EngineConfig{})

	err := e.Run(t.Context())
	if !IsReadError(err) || !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want read error wrapping %v", err, boom)
	}
	if sink.Stats().ChunksWritten != 1 {
		t.Errorf("ChunksWritten = %d, want 1", sink.Stats().ChunksWritten)
	}
}

func TestEngine_PolicyError(t *testing.T) {
	sink := policy.NewStubSink()
	sink.SetError(errors.New("store down"))
	e := NewEngine(strings.NewReader(textStream), EngineConfig{Policy: policy.NewStrictPolicy(sink)})

	err := e.Run(t.Context())
	if !IsPolicyError(err) {
		t.Fatalf("Run() error = %v, want policy error", err)
	}
	if e.Forwarded() != 0 {
		t.Errorf("Forwarded = %d, want 0", e.Forwarded())
	}
}

func TestEngine_FlushFailureIsPolicyError(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewBufferedPolicy(sink, policy.BufferedConfig{MaxBufferChunks: 100})
	if err != nil {
		t.Fatalf("NewBufferedPolicy: %v", err)
	}
	sink.SetError(errors.New("store down"))
	e := NewEngine(strings.NewReader(textStream), EngineConfig{Policy: pol})

	if err := e.Run(t.Context()); !IsPolicyError(err) {
		t.Fatalf("Run() error = %v, want policy error from flush", err)
	}
}

func TestEngine_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	e, _ := newEngine(t, strings.NewReader(textStream), EngineConfig{})
	if err := e.Run(ctx); !IsCanceledError(err) {
		t.Fatalf("Run() error = %v, want canceled", err)
	}
}

func TestEngine_SubscriberAndExport(t *testing.T) {
	var export bytes.Buffer
	sub := make(chan types.Chunk, 16)
	e, _ := newEngine(t, strings.NewReader(textStream), EngineConfig{
		Subscriber: sub,
		Export:     ipc.NewFrameEncoder(&export),
	})
	if err := e.Run(t.Context()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	close(sub)

	var received []types.Chunk
	for c := range sub {
		received = append(received, c)
	}
	if len(received) != 5 {
		t.Errorf("subscriber received %d chunks, want 5", len(received))
	}

	chunks, end, err := ipc.ReadAll(&export)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(chunks) != 5 || end != nil {
		t.Errorf("export = %d chunks, end = %v; want 5 and no end frame", len(chunks), end)
	}
}

func TestEngine_ExportError(t *testing.T) {
	e, _ := newEngine(t, strings.NewReader(textStream), EngineConfig{
		Export: ipc.NewFrameEncoder(errWriter{}),
	})
	err := e.Run(t.Context())
	var ingErr *IngestionError
	if !errors.As(err, &ingErr) || ingErr.Kind != IngestionErrorExport {
		t.Fatalf("Run() error = %v, want export error", err)
	}
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestIngestionErrorKind_String(t *testing.T) {
	tests := map[IngestionErrorKind]string{
		IngestionErrorStream:   "stream",
		IngestionErrorPolicy:   "policy",
		IngestionErrorCanceled: "canceled",
		IngestionErrorRead:     "read",
		IngestionErrorExport:   "export",
		IngestionErrorKind(9):  "IngestionErrorKind(9)",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
