package reader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pithecene-io/flight/iox"
	"github.com/pithecene-io/flight/ipc"
	"github.com/pithecene-io/flight/lode"
	"github.com/pithecene-io/flight/types"
)

// summaryWidth caps the summary column of the chunk log.
const summaryWidth = 60

// ChunkRows builds the chunk log for decoded chunks. first is the sequence
// number of chunks[0].
func ChunkRows(chunks []types.Chunk, first int64) []ChunkRow {
	rows := make([]ChunkRow, 0, len(chunks))
	for i := range chunks {
		rows = append(rows, NewChunkRow(first+int64(i), &chunks[i]))
	}
	return rows
}

// StoredChunkRows builds the chunk log for chunks read back from Lode.
func StoredChunkRows(stored []lode.StoredChunk) []ChunkRow {
	rows := make([]ChunkRow, 0, len(stored))
	for i := range stored {
		rows = append(rows, NewChunkRow(stored[i].Seq, &stored[i].Chunk))
	}
	return rows
}

// NewChunkRow builds a single chunk log line.
func NewChunkRow(seq int64, c *types.Chunk) ChunkRow {
	return ChunkRow{
		Seq:       seq,
		ID:        c.ID,
		Kind:      string(c.Kind),
		Timestamp: c.Timestamp,
		Size:      len(c.OriginalBody),
		Summary:   Summarize(c),
	}
}

// Summarize renders a one-line description of a chunk's payload.
func Summarize(c *types.Chunk) string {
	switch c.Kind {
	case types.ChunkKindText:
		return truncate(c.Text)
	case types.ChunkKindHint:
		return truncate(c.Code + " " + c.OriginalBody)
	case types.ChunkKindBuffer:
		return fmt.Sprintf("%s, %d bytes", c.BufferType, len(c.Data))
	case types.ChunkKindConsole:
		if c.Console == nil {
			return truncate(c.OriginalBody)
		}
		return fmt.Sprintf("console.%s (%d args, env %s)", c.Console.MethodName, len(c.Console.Args), c.Console.Env)
	case types.ChunkKindStartReadableStream:
		if c.StreamType != "" {
			return c.StreamType + " stream"
		}
		return "stream"
	case types.ChunkKindStartAsyncIterable:
		if c.IsIterator {
			return "iterator"
		}
		return "async iterable"
	case types.ChunkKindStopStream:
		if c.FinalModel == "" {
			return "end"
		}
		return truncate("end " + c.FinalModel)
	default:
		return truncate(c.OriginalBody)
	}
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	runes := []rune(s)
	if len(runes) <= summaryWidth {
		return s
	}
	return string(runes[:summaryWidth-3]) + "..."
}

// CountKinds tallies chunks per kind, ordered like types.AllChunkKinds.
// Kinds with no chunks are omitted.
func CountKinds(byKind map[string]int64) []KindCount {
	counts := make([]KindCount, 0, len(byKind))
	for _, k := range types.AllChunkKinds() {
		if n := byKind[string(k)]; n > 0 {
			counts = append(counts, KindCount{Kind: string(k), Count: n, Diagnostic: k.IsDiagnostic()})
		}
	}
	// Unknown kinds (a newer export) go last, sorted by name.
	var extra []string
	for k := range byKind {
		if !slices.Contains(types.AllChunkKinds(), types.ChunkKind(k)) {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	for _, k := range extra {
		counts = append(counts, KindCount{Kind: k, Count: byKind[k]})
	}
	return counts
}

// SummarizeExport builds the summary of a chunk export. end is nil when
// the export was cut short.
func SummarizeExport(chunks []*types.Chunk, end *ipc.StreamEndFrame) *ExportSummary {
	byKind := make(map[string]int64)
	for _, c := range chunks {
		byKind[string(c.Kind)]++
	}
	summary := &ExportSummary{
		Complete:   end != nil,
		ChunkCount: int64(len(chunks)),
		Kinds:      CountKinds(byKind),
	}
	if end != nil {
		summary.StreamID = end.StreamID
		summary.Source = end.Source
		summary.BytesConsumed = end.BytesConsumed
		summary.ParseFallbacks = end.ParseFallbacks
		summary.Error = end.Error
	}
	return summary
}

// ReadExport reads a chunk export file ("-" for stdin). On a frame error
// the chunks read so far are returned with the error.
func ReadExport(path string) ([]*types.Chunk, *ipc.StreamEndFrame, error) {
	in, err := iox.OpenInput(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open export: %w", err)
	}
	defer iox.DiscardClose(in)

	chunks, end, err := ipc.ReadAll(in)
	if err != nil {
		return chunks, end, fmt.Errorf("read export %s: %w", path, err)
	}
	return chunks, end, nil
}
