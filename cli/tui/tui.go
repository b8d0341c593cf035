package tui

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Interactive views.
const (
	ViewChunks  = "decode_chunks"
	ViewExport  = "inspect_export"
	ViewMetrics = "stats_metrics"
)

// Run starts the interactive view for viewType over data.
func Run(viewType string, data any) error {
	model, err := NewModel(viewType, data)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// NewModel builds the Bubble Tea model for a view.
func NewModel(viewType string, data any) (tea.Model, error) {
	if !IsTUISupported(viewType) {
		return nil, fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	switch viewType {
	case ViewChunks:
		return NewChunkLogModel(data)
	case ViewExport:
		return NewExportModel(data)
	default:
		return NewMetricsModel(data)
	}
}

// IsTUISupported returns true if the view type has an interactive view.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewChunks, ViewExport, ViewMetrics}
}

// RenderStatic renders a view once without starting a program.
func RenderStatic(viewType string, data any) (string, error) {
	model, err := NewModel(viewType, data)
	if err != nil {
		return "", err
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View()), nil
}
