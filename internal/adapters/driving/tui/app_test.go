package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// stubChat answers every question with a fixed reply.
type stubChat struct{}

func (stubChat) NewSession(namespace string) *domain.Session {
	if namespace == "" {
		namespace = domain.DefaultNamespace
	}
	return domain.NewSession("tui-session", namespace)
}

func (stubChat) Chat(_ context.Context, session *domain.Session, query string) domain.ChatResult {
	session.Append(
		domain.Turn{Role: domain.RoleUser, Content: query},
		domain.Turn{Role: domain.RoleAssistant, Content: "reply"},
	)
	return domain.ChatResult{Answer: "reply"}
}

func (stubChat) Reset(session *domain.Session) {
	session.Reset()
}

func TestPorts_Validate(t *testing.T) {
	var nilPorts *Ports
	assert.ErrorIs(t, nilPorts.Validate(), ErrMissingChatService)
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingChatService)
	assert.NoError(t, (&Ports{Chat: stubChat{}}).Validate())
}

func TestNewApp(t *testing.T) {
	_, err := NewApp(&Ports{}, "")
	assert.ErrorIs(t, err, ErrMissingChatService)

	app, err := NewApp(&Ports{Chat: stubChat{}}, "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", app.Session().Namespace())
	assert.NotNil(t, app.Init())
}

func TestApp_WithContext(t *testing.T) {
	app, err := NewApp(&Ports{Chat: stubChat{}}, "")
	require.NoError(t, err)

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	assert.Same(t, app, app.WithContext(ctx))
	assert.Equal(t, ctx, app.Context())
}

func TestApp_LoadingUntilSized(t *testing.T) {
	app, err := NewApp(&Ports{Chat: stubChat{}}, "")
	require.NoError(t, err)
	assert.Equal(t, "Loading...", app.View())

	model, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	view := model.View()
	assert.Contains(t, view, "ragchat")
	assert.Contains(t, view, "ns: default")
}

func TestApp_EscQuits(t *testing.T) {
	app, err := NewApp(&Ports{Chat: stubChat{}}, "")
	require.NoError(t, err)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
