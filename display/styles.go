package display

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	red    = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FE5F86"}
	indigo = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	green  = lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#02BF87"}
	cyan   = lipgloss.AdaptiveColor{Light: "#00838F", Dark: "#4DD0E1"}
	yellow = lipgloss.AdaptiveColor{Light: "#F9A825", Dark: "#FFD54F"}
	gray   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9E9E9E"}
)

type styles struct {
	info     lipgloss.Style
	title    lipgloss.Style
	name     lipgloss.Style
	toolName lipgloss.Style
	toolArg  lipgloss.Style
	thinking lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	error    lipgloss.Style
	dim      lipgloss.Style
	header   lipgloss.Style
	cell     lipgloss.Style

	resultPanel lipgloss.Style
	codePanel   lipgloss.Style
	errorPanel  lipgloss.Style
	dimPanel    lipgloss.Style
	panelTitle  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	panel := r.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		Padding(0, 1)

	return styles{
		info:     r.NewStyle().Foreground(gray),
		title:    r.NewStyle().Foreground(indigo).Bold(true),
		name:     r.NewStyle().Foreground(cyan),
		toolName: r.NewStyle().Foreground(cyan).Bold(true),
		toolArg:  r.NewStyle().Foreground(gray),
		thinking: r.NewStyle().Foreground(gray).Italic(true),
		success:  r.NewStyle().Foreground(green),
		warning:  r.NewStyle().Foreground(yellow),
		error:    r.NewStyle().Foreground(red).Bold(true),
		dim:      r.NewStyle().Foreground(gray).Faint(true),
		header:   r.NewStyle().Foreground(cyan).Bold(true).Padding(0, 1),
		cell:     r.NewStyle().Padding(0, 1),

		resultPanel: panel.BorderForeground(green),
		codePanel:   panel.BorderForeground(yellow),
		errorPanel:  panel.BorderForeground(red),
		dimPanel:    panel.BorderForeground(gray),
		panelTitle:  r.NewStyle().Bold(true),
	}
}
