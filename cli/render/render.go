// Package render provides centralized output rendering for the flight CLI.
//
// Format selection:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format always overrides the default
//   - Invalid formats are errors
//
// --no-color affects table output only; the TUI keeps its own styling.
package render

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/flight/cli/tui"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer writing to stdout from CLI context.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	return NewRendererTo(c, os.Stdout)
}

// NewRendererTo creates a renderer writing to out. Without --format, table
// is chosen for terminals and json otherwise.
func NewRendererTo(c *cli.Context, out io.Writer) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = defaultFormat(out)
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     out,
	}, nil
}

func defaultFormat(out io.Writer) Format {
	if f, ok := out.(*os.File); ok && IsTerminal(f) {
		return FormatTable
	}
	return FormatJSON
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// Format returns the selected output format.
func (r *Renderer) Format() Format {
	return r.format
}

// RenderTUI runs the interactive view for viewType over data.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	return enc.Encode(data)
}

// maxCell bounds table cells; chunk summaries and error strings are cut
// with a trailing ellipsis.
const maxCell = 60

func (r *Renderer) renderTable(data any) error {
	v := reflect.Indirect(reflect.ValueOf(data))
	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			fmt.Fprintln(r.out, "(no results)")
			return nil
		}
		writeRows(tw, v)
	case reflect.Struct:
		for _, col := range columnsOf(v.Type()) {
			f := v.Field(col.index)
			if col.omitEmpty && f.IsZero() {
				continue
			}
			fmt.Fprintf(tw, "%s:\t%s\n", col.name, cell(f))
		}
	case reflect.Map:
		for _, key := range sortedKeys(v) {
			fmt.Fprintf(tw, "%v:\t%s\n", key.Interface(), cell(v.MapIndex(key)))
		}
	default:
		fmt.Fprintf(tw, "%v\n", data)
	}
	return tw.Flush()
}

// writeRows prints one line per element. Struct elements use their
// columns; map elements use the sorted keys of the first element.
func writeRows(tw io.Writer, v reflect.Value) {
	first := reflect.Indirect(v.Index(0))

	var header []string
	var row func(reflect.Value) []string
	switch first.Kind() {
	case reflect.Struct:
		cols := columnsOf(first.Type())
		for _, col := range cols {
			header = append(header, col.name)
		}
		row = func(e reflect.Value) []string {
			out := make([]string, len(cols))
			for i, col := range cols {
				out[i] = cell(e.Field(col.index))
			}
			return out
		}
	case reflect.Map:
		keys := sortedKeys(first)
		for _, k := range keys {
			header = append(header, fmt.Sprint(k.Interface()))
		}
		row = func(e reflect.Value) []string {
			out := make([]string, len(keys))
			for i, k := range keys {
				out[i] = cell(e.MapIndex(k))
			}
			return out
		}
	default:
		row = func(e reflect.Value) []string { return []string{cell(e)} }
	}

	if header != nil {
		fmt.Fprintln(tw, strings.Join(header, "\t"))
	}
	for i := 0; i < v.Len(); i++ {
		fmt.Fprintln(tw, strings.Join(row(reflect.Indirect(v.Index(i))), "\t"))
	}
}

type column struct {
	name      string
	index     int
	omitEmpty bool
}

// columnsOf lists the exported fields of t under their json names.
// Fields tagged json:"-" are skipped.
func columnsOf(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		cols = append(cols, column{
			name:      name,
			index:     i,
			omitEmpty: strings.Contains(opts, "omitempty"),
		})
	}
	return cols
}

func cell(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return truncate(inlineList(v))
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return formatCounts(v)
	case reflect.Struct:
		if t, ok := v.Interface().(fmt.Stringer); ok {
			return truncate(t.String())
		}
		return "{...}"
	case reflect.String:
		return truncate(strings.ReplaceAll(v.String(), "\n", `\n`))
	default:
		return fmt.Sprint(v.Interface())
	}
}

// inlineList shows short lists of two-field structs as first=second pairs,
// which covers kind counts. Anything else collapses to an item count.
func inlineList(v reflect.Value) string {
	if v.Len() == 0 {
		return "[]"
	}
	if v.Type().Elem().Kind() == reflect.Struct && v.Len() <= 6 {
		parts := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			e := v.Index(i)
			if e.NumField() < 2 || !e.Type().Field(0).IsExported() || !e.Type().Field(1).IsExported() {
				return fmt.Sprintf("[%d items]", v.Len())
			}
			parts = append(parts, fmt.Sprintf("%v=%v", e.Field(0).Interface(), e.Field(1).Interface()))
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprintf("[%d items]", v.Len())
}

func truncate(s string) string {
	if len(s) <= maxCell {
		return s
	}
	return s[:maxCell-3] + "..."
}

// formatCounts renders small maps inline as k=v pairs, sorted by key.
// Larger maps collapse to a key count.
func formatCounts(v reflect.Value) string {
	if v.Len() > 4 {
		return fmt.Sprintf("{%d keys}", v.Len())
	}
	parts := make([]string, 0, v.Len())
	for _, key := range sortedKeys(v) {
		parts = append(parts, fmt.Sprintf("%v=%v", key.Interface(), v.MapIndex(key).Interface()))
	}
	return strings.Join(parts, " ")
}

func sortedKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	return keys
}

// IsTerminal reports whether f is a terminal (including Cygwin/MSYS ptys).
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
