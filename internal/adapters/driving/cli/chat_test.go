package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func TestChatPlain_AnswersWithSources(t *testing.T) {
	tr := setupTestRuntime(t)
	rootCmd.SetIn(strings.NewReader("what is the refund policy?\n/quit\n"))

	out, err := execute(t, "chat", "--plain", "-n", "docs")
	require.NoError(t, err)

	assert.Equal(t, []string{"what is the refund policy?"}, tr.chat.asked)
	assert.Equal(t, []string{"docs"}, tr.chat.spaces)
	assert.Contains(t, out, `Chatting in namespace "docs"`)
	assert.Contains(t, out, "answer to what is the refund policy?")
	assert.Contains(t, out, "- notes.md #1 (0.500)")
}

func TestChatPlain_Commands(t *testing.T) {
	tr := setupTestRuntime(t)
	tr.index.namespaces = []domain.NamespaceStats{{Name: "default", RecordCount: 4}, {Name: "docs", RecordCount: 2}}
	rootCmd.SetIn(strings.NewReader("first\n/ns\n/ns docs\nsecond\n/reset\n\n/exit\nnever asked\n"))

	out, err := execute(t, "chat", "--plain")
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, tr.chat.asked)
	assert.Equal(t, []string{domain.DefaultNamespace, "docs"}, tr.chat.spaces)
	assert.Equal(t, 1, tr.chat.resets)
	assert.Contains(t, out, "Current namespace: default")
	assert.Contains(t, out, "docs (2 records)")
	assert.Contains(t, out, `Switched to namespace "docs"`)
	assert.Contains(t, out, "History cleared.")
}

func TestChatPlain_FailedTurnPrintsHint(t *testing.T) {
	tr := setupTestRuntime(t)
	tr.chat.fail = domain.ErrAuthInvalid
	rootCmd.SetIn(strings.NewReader("hello\n"))

	out, err := execute(t, "chat", "--plain")
	require.NoError(t, err, "a failed turn does not end the conversation")

	assert.Contains(t, out, "Sorry, I could not answer.")
	assert.Contains(t, out, "ragchat settings keys")
}

func TestChatPlain_EndOfInput(t *testing.T) {
	tr := setupTestRuntime(t)
	rootCmd.SetIn(strings.NewReader(""))

	_, err := execute(t, "chat")
	require.NoError(t, err)
	assert.Empty(t, tr.chat.asked)
}

func TestChat_RequiresLanguageModel(t *testing.T) {
	tr := setupTestRuntime(t)
	SetLoader(func(_ context.Context, opts LoadOptions) (*Runtime, error) {
		tr.opts = append(tr.opts, opts)
		return &Runtime{Settings: tr.settings, Index: tr.index}, nil
	})

	_, err := execute(t, "chat", "--plain")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}
