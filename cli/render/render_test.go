package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pithecene-io/flight/cli/reader"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"table", FormatTable, false},
		{"yaml", FormatYAML, false},
		{"", "", false},
		{"xml", "", true},
		{"csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if err != nil && !strings.Contains(err.Error(), "json, table, or yaml") {
				t.Errorf("error should list valid formats, got: %v", err)
			}
		})
	}
}

func TestRenderer_Formats(t *testing.T) {
	row := reader.ChunkRow{Seq: 3, ID: "1f", Kind: "model", Timestamp: 2, Size: 7, Summary: `{"a":1}`}

	tests := []struct {
		format Format
		want   []string
	}{
		{FormatJSON, []string{`"seq": 3`, `"kind": "model"`, `"summary": "{\"a\":1}"`}},
		{FormatYAML, []string{"seq: 3", "kind: model", "id: 1f"}},
		{FormatTable, []string{"seq:", "kind:", "model", "1f"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewRendererWithWriter(tt.format, false, &buf).Render(row); err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestRenderer_Table_ChunkLog(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	rows := []reader.ChunkRow{
		{Seq: 0, ID: "0", Kind: "model", Summary: "first"},
		{Seq: 1, ID: "1", Kind: "text", Summary: "second"},
	}
	if err := r.Render(rows); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", lines)
	}
	for _, h := range []string{"seq", "id", "kind", "summary"} {
		if !strings.Contains(lines[0], h) {
			t.Errorf("header missing %q: %s", h, lines[0])
		}
	}
	if !strings.Contains(lines[1], "first") || !strings.Contains(lines[2], "second") {
		t.Errorf("rows out of order: %q", lines[1:])
	}
}

func TestRenderer_Table_EmptySlice(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatTable, false, &buf).Render([]reader.ChunkRow{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("empty slice should show '(no results)', got: %s", buf.String())
	}
}

func TestRenderer_NoColor_DoesNotAffectJSON(t *testing.T) {
	var color, noColor bytes.Buffer
	data := map[string]string{"key": "value"}

	if err := NewRendererWithWriter(FormatJSON, false, &color).Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if err := NewRendererWithWriter(FormatJSON, true, &noColor).Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if color.String() != noColor.String() {
		t.Error("--no-color should not affect JSON output")
	}
}

func TestRenderer_Table_MapSorted(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	if err := r.Render(map[string]int{"text": 1, "console": 2, "model": 3}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "console:") || !strings.HasPrefix(lines[2], "text:") {
		t.Errorf("map keys not sorted: %q", lines)
	}
}

func TestRenderer_Table_InlineCounts(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	type summary struct {
		ChunkCount int64            `json:"chunk_count"`
		ByKind     map[string]int64 `json:"by_kind"`
		Wide       map[string]int64 `json:"wide"`
	}
	data := summary{
		ChunkCount: 3,
		ByKind:     map[string]int64{"text": 1, "model": 2},
		Wide:       map[string]int64{"a": 1, "b": 1, "c": 1, "d": 1, "e": 1},
	}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "model=2 text=1") {
		t.Errorf("small map should render inline: %s", got)
	}
	if !strings.Contains(got, "{5 keys}") {
		t.Errorf("large map should collapse: %s", got)
	}
}

func TestDefaultFormat_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	if got := defaultFormat(&buf); got != FormatJSON {
		t.Errorf("defaultFormat(buffer) = %q, want json", got)
	}
}

func TestRenderer_Table_ExportSummary(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	summary := reader.ExportSummary{
		StreamID:   "s-1",
		Complete:   true,
		ChunkCount: 3,
		Kinds: []reader.KindCount{
			{Kind: "model", Count: 2},
			{Kind: "text", Count: 1},
		},
	}
	if err := r.Render(summary); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "model=2 text=1") {
		t.Errorf("kinds should render inline: %s", got)
	}
	if strings.Contains(got, "error:") {
		t.Errorf("empty omitempty field should be skipped: %s", got)
	}
}

func TestRenderer_Table_TruncatesLongCells(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	long := strings.Repeat("x", 200)
	if err := r.Render([]reader.ChunkRow{{Seq: 0, ID: "0", Kind: "text", Summary: long + "\nnext"}}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("embedded newline split the row: %q", lines)
	}
	if strings.Contains(lines[1], long) || !strings.HasSuffix(lines[1], "...") {
		t.Errorf("summary not truncated: %s", lines[1])
	}
}
