// Package status provides the status bar of the chat TUI.
package status

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/styles"
)

// State represents the chat state for display.
type State string

const (
	StateReady    State = "ready"
	StateThinking State = "thinking"
	StateError    State = "error"
)

// Bar shows the namespace, conversation length and keybinding hints.
type Bar struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	state     State
	message   string
	namespace string
	turns     int
	width     int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		width:  80,
	}
}

// Init initialises the status bar.
func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update is a no-op; the bar is driven through its setters.
func (s *Bar) Update(_ tea.Msg) (*Bar, tea.Cmd) {
	return s, nil
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	scope := s.styles.Normal.Render(fmt.Sprintf("ns: %s", s.namespace))
	switch s.state {
	case StateThinking:
		return scope + s.styles.Muted.Render("  thinking...")
	case StateError:
		msg := "error"
		if s.message != "" {
			msg = "error: " + s.message
		}
		return scope + "  " + s.styles.Error.Render(msg)
	case StateReady:
		if s.message != "" {
			return scope + "  " + s.styles.Muted.Render(s.message)
		}
	}
	return scope + s.styles.Muted.Render(fmt.Sprintf("  %d turns", s.turns))
}

func (s *Bar) renderRight() string {
	bindings := s.keymap.ShortHelp()
	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets a transient message shown next to the namespace.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetNamespace sets the namespace shown.
func (s *Bar) SetNamespace(namespace string) {
	s.namespace = namespace
}

// SetTurns sets the number of turns in the history.
func (s *Bar) SetTurns(turns int) {
	s.turns = turns
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Clear returns the bar to the ready state.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
}
