package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/flight/cli/reader"
)

// MetricsModel shows a stream metrics record as stat boxes.
type MetricsModel struct {
	data     *reader.MetricsSnapshot
	quitting bool
}

// NewMetricsModel creates a metrics view over *reader.MetricsSnapshot.
func NewMetricsModel(data any) (*MetricsModel, error) {
	snap, ok := data.(*reader.MetricsSnapshot)
	if !ok {
		return nil, fmt.Errorf("metrics view needs *reader.MetricsSnapshot, got %T", data)
	}
	return &MetricsModel{data: snap}, nil
}

// Init implements tea.Model.
func (m *MetricsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *MetricsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m *MetricsModel) View() string {
	if m.quitting {
		return ""
	}
	d := m.data

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Stream %s", d.StreamID)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Completed:"), ValueStyle.Render(d.CompletedAt)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Policy:"), ValueStyle.Render(d.Policy)))
	b.WriteString(fmt.Sprintf("%s %s\n\n", LabelStyle.Render("Storage:"), ValueStyle.Render(d.StorageBackend)))

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Rows", d.RowsDecoded, highlightColor),
		statBox("Bytes", d.BytesFed, highlightColor),
		statBox("Fallbacks", d.ParseFallbacks, controlColor),
		statBox("Framing Errors", d.FramingErrors+d.IncompleteRows, failureColor),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Persisted", d.ChunksPersisted, payloadColor),
		statBox("Dropped", d.ChunksDropped, controlColor),
		statBox("Writes", d.LodeWriteSuccess, payloadColor),
		statBox("Write Failures", d.LodeWriteFailure, failureColor),
	))

	if len(d.ChunksByKind) > 0 {
		b.WriteString("\n\n")
		b.WriteString(TitleStyle.Render("Rows by Kind"))
		b.WriteString("\n")
		for _, kind := range sortedKinds(d.ChunksByKind) {
			line := fmt.Sprintf("%s %d", KindStyle(kind).Width(24).Render(kind), d.ChunksByKind[kind])
			if dropped := d.DroppedByKind[kind]; dropped > 0 {
				line += WarningStyle.Render(fmt.Sprintf("  (%d dropped)", dropped))
			}
			b.WriteString(line + "\n")
		}
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return b.String() + "\n" + help
}

func statBox(label string, value int64, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	return StatBoxStyle.BorderForeground(color).Render(
		lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

func sortedKinds(m map[string]int64) []string {
	kinds := make([]string, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
