// Package tui provides Bubble Tea views for the flight CLI.
//
// Views are opt-in (--tui) and render the same reader payloads as the
// json, table and yaml formats.
package tui

import "github.com/charmbracelet/lipgloss"

// Row families share a color in every view.
var (
	payloadColor    = lipgloss.Color("#22C55E") // model, text, buffer
	referenceColor  = lipgloss.Color("#38BDF8") // module, hint
	diagnosticColor = lipgloss.Color("#A78BFA") // console, debug_info
	failureColor    = lipgloss.Color("#F43F5E") // error and postpone
	controlColor    = lipgloss.Color("#FBBF24") // stream start and stop
	mutedColor      = lipgloss.Color("#71717A")
	textColor       = lipgloss.Color("#F4F4F5")
	highlightColor  = referenceColor
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func framed(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border)
}

// Shared styles.
var (
	TitleStyle = fg(referenceColor).Bold(true).MarginBottom(1)
	LabelStyle = fg(mutedColor).Width(18)
	ValueStyle = fg(textColor)
	HelpStyle  = fg(mutedColor).MarginTop(1)
	BoxStyle   = framed(mutedColor).Padding(1, 2)

	SuccessStyle = fg(payloadColor)
	WarningStyle = fg(controlColor)
	ErrorStyle   = fg(failureColor)

	StatBoxStyle   = framed(referenceColor).Padding(0, 2).Width(22).Align(lipgloss.Center)
	StatLabelStyle = fg(mutedColor).Align(lipgloss.Center)
	StatValueStyle = fg(textColor).Bold(true).Align(lipgloss.Center)
)

var kindStyles = map[string]lipgloss.Style{
	"model":                 fg(payloadColor),
	"text":                  fg(payloadColor),
	"buffer":                fg(payloadColor),
	"module":                fg(referenceColor),
	"hint":                  fg(referenceColor).Italic(true),
	"console":               fg(diagnosticColor),
	"debug_info":            fg(diagnosticColor).Italic(true),
	"error_dev":             fg(failureColor).Bold(true),
	"error_prod":            fg(failureColor).Bold(true),
	"postpone_dev":          fg(failureColor),
	"postpone_prod":         fg(failureColor),
	"start_readable_stream": fg(controlColor),
	"start_async_iterable":  fg(controlColor),
	"stop_stream":           fg(controlColor),
}

// KindStyle colors a chunk kind by its row family. Unknown kinds use the
// plain value style.
func KindStyle(kind string) lipgloss.Style {
	if s, ok := kindStyles[kind]; ok {
		return s
	}
	return ValueStyle
}

// CompleteStyle styles an export's completion state.
func CompleteStyle(complete bool) (lipgloss.Style, string) {
	if complete {
		return SuccessStyle, "complete"
	}
	return ErrorStyle, "truncated"
}
