// Package styles provides colour themes and styling for the chat TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colour palette of the TUI.
type Theme struct {
	// Primary marks the assistant and titles.
	Primary lipgloss.Color

	// Secondary marks the user.
	Secondary lipgloss.Color

	// Foreground is the default text colour.
	Foreground lipgloss.Color

	// Muted is for sources and hints.
	Muted lipgloss.Color

	// Error indicates failed turns.
	Error lipgloss.Color

	// Border is the border colour.
	Border lipgloss.Color

	// Bar is the status bar background.
	Bar lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    lipgloss.Color("#7C3AED"), // Purple
		Secondary:  lipgloss.Color("#06B6D4"), // Cyan
		Foreground: lipgloss.Color("#CDD6F4"), // Light gray
		Muted:      lipgloss.Color("#6C7086"), // Medium gray
		Error:      lipgloss.Color("#F38BA8"), // Red
		Border:     lipgloss.Color("#45475A"), // Border gray
		Bar:        lipgloss.Color("#181825"),
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	Title     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Normal    lipgloss.Style
	Source    lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style

	// Transcript frames the conversation viewport.
	Transcript lipgloss.Style

	// InputField frames the question input.
	InputField lipgloss.Style

	StatusBar lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme: theme,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		User: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Secondary),

		Assistant: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		Normal: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Source: lipgloss.NewStyle().
			Foreground(theme.Muted).
			PaddingLeft(2),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Error: lipgloss.NewStyle().
			Foreground(theme.Error),

		Transcript: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Background(theme.Bar).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}
