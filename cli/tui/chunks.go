package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/flight/cli/reader"
)

// chromeHeight is the space taken by the title, detail line and help.
const chromeHeight = 8

// ChunkLogModel is a scrollable chunk log with a kind filter.
type ChunkLogModel struct {
	rows     []reader.ChunkRow
	kinds    []string // distinct kinds, in first-seen order
	filter   int      // index into kinds, -1 for all
	visible  []reader.ChunkRow
	table    table.Model
	quitting bool
}

// NewChunkLogModel creates a chunk log view over []reader.ChunkRow.
func NewChunkLogModel(data any) (*ChunkLogModel, error) {
	rows, ok := data.([]reader.ChunkRow)
	if !ok {
		return nil, fmt.Errorf("chunk log view needs []reader.ChunkRow, got %T", data)
	}

	m := &ChunkLogModel{rows: rows, filter: -1}
	seen := make(map[string]bool)
	for _, r := range rows {
		if !seen[r.Kind] {
			seen[r.Kind] = true
			m.kinds = append(m.kinds, r.Kind)
		}
	}

	m.table = table.New(
		table.WithColumns([]table.Column{
			{Title: "Seq", Width: 6},
			{Title: "ID", Width: 8},
			{Title: "Kind", Width: 22},
			{Title: "Clock", Width: 6},
			{Title: "Size", Width: 7},
			{Title: "Summary", Width: 60},
		}),
		table.WithFocused(true),
		table.WithHeight(16),
	)
	m.applyFilter()
	return m, nil
}

// Filter returns the active kind filter, or "" for all kinds.
func (m *ChunkLogModel) Filter() string {
	if m.filter < 0 {
		return ""
	}
	return m.kinds[m.filter]
}

// Visible returns the rows passing the current filter.
func (m *ChunkLogModel) Visible() []reader.ChunkRow {
	return m.visible
}

func (m *ChunkLogModel) applyFilter() {
	want := m.Filter()
	m.visible = m.visible[:0]
	tableRows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		if want != "" && r.Kind != want {
			continue
		}
		m.visible = append(m.visible, r)
		tableRows = append(tableRows, table.Row{
			strconv.FormatInt(r.Seq, 10),
			r.ID,
			r.Kind,
			strconv.FormatUint(r.Timestamp, 10),
			strconv.Itoa(r.Size),
			r.Summary,
		})
	}
	m.table.SetRows(tableRows)
	m.table.GotoTop()
}

// Init implements tea.Model.
func (m *ChunkLogModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *ChunkLogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-chromeHeight, 3))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Filter):
			if len(m.kinds) > 0 {
				m.filter++
				if m.filter >= len(m.kinds) {
					m.filter = -1
				}
				m.applyFilter()
			}
			return m, nil
		case key.Matches(msg, keys.Clear):
			m.filter = -1
			m.applyFilter()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *ChunkLogModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	title := fmt.Sprintf("Chunk Log (%d of %d)", len(m.visible), len(m.rows))
	if f := m.Filter(); f != "" {
		title += "  kind=" + f
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(BoxStyle.Padding(0, 1).Render(m.table.View()))
	b.WriteString("\n")

	if c := m.table.Cursor(); c >= 0 && c < len(m.visible) {
		row := m.visible[c]
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Row "+row.ID+":"),
			KindStyle(row.Kind).Render(row.Summary)))
	}

	b.WriteString(HelpStyle.Render("↑/↓ scroll • tab next kind • esc all kinds • q quit"))
	return b.String()
}
