// Package input provides the question input of the chat TUI.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/styles"
)

// QuestionInput wraps a bubbles textinput with chat styling.
type QuestionInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	width     int
}

// NewQuestionInput creates a focused question input.
func NewQuestionInput(s *styles.Styles) *QuestionInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /ns <name> to switch namespace"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 50

	return &QuestionInput{
		textinput: ti,
		styles:    s,
		width:     50,
	}
}

// Init starts the cursor blinking.
func (q *QuestionInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input messages.
func (q *QuestionInput) Update(msg tea.Msg) (*QuestionInput, tea.Cmd) {
	var cmd tea.Cmd
	q.textinput, cmd = q.textinput.Update(msg)
	return q, cmd
}

// View renders the input in its frame.
func (q *QuestionInput) View() string {
	return q.styles.InputField.Render(q.textinput.View())
}

// Value returns the current input value.
func (q *QuestionInput) Value() string {
	return q.textinput.Value()
}

// SetValue sets the input value.
func (q *QuestionInput) SetValue(value string) {
	q.textinput.SetValue(value)
}

// Focus sets focus on the input.
func (q *QuestionInput) Focus() tea.Cmd {
	return q.textinput.Focus()
}

// Blur removes focus from the input.
func (q *QuestionInput) Blur() {
	q.textinput.Blur()
}

// Focused returns whether the input is focused.
func (q *QuestionInput) Focused() bool {
	return q.textinput.Focused()
}

// SetWidth sets the outer width of the input.
func (q *QuestionInput) SetWidth(width int) {
	q.width = width
	// Frame, padding and prompt.
	inner := width - 8
	if inner < 20 {
		inner = 20
	}
	q.textinput.Width = inner
}

// Width returns the current width.
func (q *QuestionInput) Width() int {
	return q.width
}

// Reset clears the input.
func (q *QuestionInput) Reset() {
	q.textinput.Reset()
}
