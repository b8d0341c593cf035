package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/flight/cli/reader"
)

// ExportModel shows the summary of one chunk export.
type ExportModel struct {
	data     *reader.ExportSummary
	quitting bool
}

// NewExportModel creates an export view over *reader.ExportSummary.
func NewExportModel(data any) (*ExportModel, error) {
	summary, ok := data.(*reader.ExportSummary)
	if !ok {
		return nil, fmt.Errorf("export view needs *reader.ExportSummary, got %T", data)
	}
	return &ExportModel{data: summary}, nil
}

// Init implements tea.Model.
func (m *ExportModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m *ExportModel) View() string {
	if m.quitting {
		return ""
	}
	d := m.data

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Chunk Export"))
	b.WriteString("\n\n")

	style, state := CompleteStyle(d.Complete)
	fields := []struct {
		label string
		value string
	}{
		{"Stream ID", d.StreamID},
		{"Source", d.Source},
		{"Chunks", fmt.Sprintf("%d", d.ChunkCount)},
		{"Bytes", fmt.Sprintf("%d", d.BytesConsumed)},
		{"Fallbacks", fmt.Sprintf("%d", d.ParseFallbacks)},
	}
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("State:"), style.Render(state)))
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(f.label+":"), ValueStyle.Render(f.value)))
	}
	if d.Error != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Error:"), ErrorStyle.Render(d.Error)))
	}

	if len(d.Kinds) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Chunks by Kind"))
		b.WriteString("\n")
		for _, k := range d.Kinds {
			name := KindStyle(k.Kind).Width(24).Render(k.Kind)
			bar := strings.Repeat("█", barWidth(k.Count, d.ChunkCount))
			b.WriteString(fmt.Sprintf("%s %6d %s\n", name, k.Count, lipgloss.NewStyle().Foreground(highlightColor).Render(bar)))
		}
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return BoxStyle.Render(b.String()) + "\n" + help
}

// barWidth scales count against total onto a 30-cell bar. Non-zero
// counts always get at least one cell.
func barWidth(count, total int64) int {
	if total <= 0 || count <= 0 {
		return 0
	}
	return max(int(count*30/total), 1)
}
