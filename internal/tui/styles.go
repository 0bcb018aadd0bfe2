package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds every lipgloss style the watch view uses.
type Styles struct {
	Title lipgloss.Style
	Timer lipgloss.Style
	RapID lipgloss.Style

	JobActive lipgloss.Style
	JobName   lipgloss.Style

	PhaseIcon lipgloss.Style
	PhaseText lipgloss.Style

	Footer    lipgloss.Style
	FooterKey lipgloss.Style

	StatusComplete lipgloss.Style
	StatusFailed   lipgloss.Style
	StatusActive   lipgloss.Style

	LogTitle lipgloss.Style
	LogLine  lipgloss.Style
	ErrLine  lipgloss.Style
}

// DefaultStyles returns the watch view's default styling.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Timer: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		RapID: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),

		JobActive: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		JobName:   lipgloss.NewStyle().Bold(true),

		PhaseIcon: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		PhaseText: lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true),

		Footer:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).MarginTop(1),
		FooterKey: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),

		StatusComplete: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		StatusFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		StatusActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),

		LogTitle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Bold(true),
		LogLine:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		ErrLine:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

const (
	iconComplete = "✓"
	iconFailed   = "✗"
)
