package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/views/chat"
	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// App is the chat TUI following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports    *Ports
	ctx      context.Context
	styles   *styles.Styles
	chatView *chat.View

	width  int
	height int
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a chat application with a fresh session in namespace.
// An empty namespace means the configured default.
func NewApp(ports *Ports, namespace string) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	session := ports.Chat.NewSession(namespace)

	return &App{
		ports:    ports,
		ctx:      context.Background(),
		styles:   s,
		chatView: chat.NewView(s, keymap.DefaultKeyMap(), ports.Chat, ports.Index, session),
	}, nil
}

// WithContext sets the context chat turns run under.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.chatView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("ragchat"),
		a.chatView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		a.width = size.Width
		a.height = size.Height
	}

	var cmd tea.Cmd
	a.chatView, cmd = a.chatView.Update(msg)
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	return a.chatView.View()
}

// Session returns the session of the conversation.
func (a *App) Session() *domain.Session {
	return a.chatView.Session()
}

// Context returns the app context.
func (a *App) Context() context.Context {
	return a.ctx
}
