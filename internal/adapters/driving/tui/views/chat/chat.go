// Package chat provides the conversation view of the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

// entry is one block of the transcript.
type entry struct {
	role    domain.Role
	text    string
	sources []domain.Match
	failed  bool
	notice  bool
}

// View is the chat screen: transcript, input line and status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QuestionInput
	statusbar *status.Bar
	viewport  viewport.Model
	spinner   spinner.Model

	chat    driving.ChatService
	index   driving.IndexService
	session *domain.Session
	ctx     context.Context

	entries []entry
	pending bool
	width   int
	height  int
	ready   bool
}

// NewView creates a chat view over session.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	chat driving.ChatService,
	index driving.IndexService,
	session *domain.Session,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = s.Assistant

	v := &View{
		styles:    s,
		keymap:    km,
		input:     input.NewQuestionInput(s),
		statusbar: status.NewBar(s, km),
		viewport:  viewport.New(80, 20),
		spinner:   sp,
		chat:      chat,
		index:     index,
		session:   session,
		ctx:       context.Background(),
		width:     80,
		height:    24,
	}
	v.statusbar.SetNamespace(session.Namespace())
	v.refresh()
	return v
}

// WithContext sets the context chat turns run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		v.ready = true
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case spinner.TickMsg:
		if !v.pending {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		v.refresh()
		return v, cmd

	case messages.AnswerReceived:
		v.handleAnswer(msg)
		return v, nil

	case messages.NamespacesListed:
		v.handleNamespaces(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()
	switch {
	case keymap.Matches(keyStr, v.keymap.Quit):
		return v, tea.Quit
	case keymap.Matches(keyStr, v.keymap.Reset):
		v.reset()
		return v, nil
	case keymap.Matches(keyStr, v.keymap.ScrollUp):
		v.viewport.HalfPageUp()
		return v, nil
	case keymap.Matches(keyStr, v.keymap.ScrollDown):
		v.viewport.HalfPageDown()
		return v, nil
	case keymap.Matches(keyStr, v.keymap.Send):
		return v, v.submit()
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit handles the input line: a slash command or a question.
func (v *View) submit() tea.Cmd {
	text := strings.TrimSpace(v.input.Value())
	if text == "" || v.pending {
		return nil
	}
	v.input.Reset()

	switch {
	case text == "/reset":
		v.reset()
		return nil
	case text == "/ns" || strings.HasPrefix(text, "/ns "):
		return v.switchNamespace(strings.TrimSpace(strings.TrimPrefix(text, "/ns")))
	}

	v.entries = append(v.entries, entry{role: domain.RoleUser, text: text})
	v.pending = true
	v.statusbar.Clear()
	v.statusbar.SetState(status.StateThinking)
	v.refresh()

	return tea.Batch(v.ask(text), v.spinner.Tick)
}

// ask runs a chat turn off the UI loop.
func (v *View) ask(question string) tea.Cmd {
	chat, session, ctx := v.chat, v.session, v.ctx
	return func() tea.Msg {
		return messages.AnswerReceived{
			Question: question,
			Result:   chat.Chat(ctx, session, question),
		}
	}
}

func (v *View) handleAnswer(msg messages.AnswerReceived) {
	v.pending = false
	v.entries = append(v.entries, entry{
		role:    domain.RoleAssistant,
		text:    msg.Result.Answer,
		sources: msg.Result.Sources,
		failed:  !msg.Result.OK(),
	})

	if msg.Result.OK() {
		v.statusbar.Clear()
	} else {
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(describeError(msg.Result.Err))
	}
	v.refresh()
}

func (v *View) switchNamespace(name string) tea.Cmd {
	if name == "" {
		if v.index == nil {
			v.notice(fmt.Sprintf("Current namespace: %s", v.session.Namespace()))
			return nil
		}
		index, ctx := v.index, v.ctx
		return func() tea.Msg {
			stats, err := index.Namespaces(ctx)
			return messages.NamespacesListed{Namespaces: stats, Err: err}
		}
	}

	v.session.SetNamespace(name)
	v.statusbar.SetNamespace(v.session.Namespace())
	v.notice(fmt.Sprintf("Switched to namespace %s. History is kept; ctrl+r clears it.", v.session.Namespace()))
	return nil
}

func (v *View) handleNamespaces(msg messages.NamespacesListed) {
	if msg.Err != nil {
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(describeError(msg.Err))
		return
	}
	if len(msg.Namespaces) == 0 {
		v.notice("The index has no namespaces yet. Ingest some files first.")
		return
	}
	lines := make([]string, 0, len(msg.Namespaces)+1)
	lines = append(lines, fmt.Sprintf("Current namespace: %s. Available:", v.session.Namespace()))
	for _, ns := range msg.Namespaces {
		lines = append(lines, fmt.Sprintf("  %s (%d records)", ns.Name, ns.RecordCount))
	}
	v.notice(strings.Join(lines, "\n"))
}

func (v *View) reset() {
	if v.pending {
		return
	}
	v.chat.Reset(v.session)
	v.entries = nil
	v.statusbar.Clear()
	v.statusbar.SetMessage("history cleared")
	v.refresh()
}

func (v *View) notice(text string) {
	v.entries = append(v.entries, entry{text: text, notice: true})
	v.refresh()
}

// refresh re-renders the transcript into the viewport and scrolls to the end.
func (v *View) refresh() {
	v.statusbar.SetTurns(v.session.Len())
	v.viewport.SetContent(v.renderTranscript())
	v.viewport.GotoBottom()
}

func (v *View) renderTranscript() string {
	wrap := lipgloss.NewStyle().Width(max(20, v.viewport.Width-2))

	if len(v.entries) == 0 && !v.pending {
		return v.styles.Muted.Render("Ask a question about your documents.")
	}

	var b strings.Builder
	for i, e := range v.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch {
		case e.notice:
			b.WriteString(v.styles.Muted.Render(wrap.Render(e.text)))
		case e.role == domain.RoleUser:
			b.WriteString(v.styles.User.Render("You"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(e.text))
		default:
			b.WriteString(v.styles.Assistant.Render("Assistant"))
			b.WriteString("\n")
			if e.failed {
				b.WriteString(v.styles.Error.Render(wrap.Render(e.text)))
			} else {
				b.WriteString(wrap.Render(e.text))
			}
			b.WriteString(v.renderSources(e.sources))
		}
	}
	if v.pending {
		b.WriteString("\n\n")
		b.WriteString(v.spinner.View() + v.styles.Muted.Render(" thinking..."))
	}
	return b.String()
}

func (v *View) renderSources(sources []domain.Match) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render("Sources:"))
	for _, m := range sources {
		b.WriteString("\n")
		b.WriteString(v.styles.Source.Render(fmt.Sprintf("%s #%d (%.3f)",
			m.Metadata.SourceID, m.Metadata.SequenceIndex, m.Score)))
	}
	return b.String()
}

// View renders the chat screen.
func (v *View) View() string {
	if !v.ready {
		return "Loading..."
	}

	title := v.styles.Title.Render("ragchat")
	transcript := v.styles.Transcript.Render(v.viewport.View())
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		transcript,
		v.input.View(),
		v.statusbar.View(),
	)
}

// SetDimensions lays out the components for a terminal of the given size.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height

	frameW, frameH := v.styles.Transcript.GetFrameSize()
	// Title, input box (3 lines) and status bar.
	reserved := 1 + 3 + 1 + frameH
	v.viewport.Width = max(20, width-frameW)
	v.viewport.Height = max(3, height-reserved)

	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
	v.refresh()
}

// Pending reports whether a chat turn is in flight.
func (v *View) Pending() bool {
	return v.pending
}

// Transcript returns the rendered transcript.
func (v *View) Transcript() string {
	return v.renderTranscript()
}

// Session returns the session the view chats in.
func (v *View) Session() *domain.Session {
	return v.session
}

// describeError turns common failures into guidance.
func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthInvalid):
		return "invalid API key"
	case errors.Is(err, domain.ErrIndexNotFound):
		return "index not found, run 'ragchat index init'"
	case errors.Is(err, domain.ErrLLMUnavailable):
		return "no LLM configured"
	default:
		return err.Error()
	}
}
