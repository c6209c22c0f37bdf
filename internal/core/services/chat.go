package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure ChatEngine implements the interface.
var _ driving.ChatService = (*ChatEngine)(nil)

// errorAnswerPrefix starts the answer of a failed chat turn.
const errorAnswerPrefix = "Error generating response: "

const defaultSystemPrompt = `You are a helpful assistant answering questions about the user's documents.
Use only the context below to answer. If the context does not contain the answer, say that you don't know instead of making one up.

Context:
%s`

const defaultCondensePrompt = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

// DefaultPrompts returns the built-in templates by prompt name.
func DefaultPrompts() map[string]string {
	return map[string]string{
		driven.PromptChatSystem: defaultSystemPrompt,
		driven.PromptCondense:   defaultCondensePrompt,
	}
}

// ChatEngine answers questions with retrieval-augmented generation.
// It holds no conversation state; every call works on the caller's session.
type ChatEngine struct {
	index      driving.IndexService
	llm        driven.LLMService
	k          int
	namespace  string
	maxHistory int
	condense   bool
	options    driven.ChatOptions
	retry      retryPolicy
	prompts    driven.PromptStore
}

// NewChatEngine creates a chat engine retrieving through index and
// generating with llm.
func NewChatEngine(index driving.IndexService, llm driven.LLMService, settings domain.Settings) *ChatEngine {
	k := settings.Retrieval.K
	if k <= 0 {
		k = domain.DefaultK
	}
	namespace := settings.Retrieval.Namespace
	if namespace == "" {
		namespace = domain.DefaultNamespace
	}
	return &ChatEngine{
		index:      index,
		llm:        llm,
		k:          k,
		namespace:  namespace,
		maxHistory: settings.Chat.MaxHistoryTurns,
		condense:   settings.Chat.CondenseQuestion,
		options: driven.ChatOptions{
			Temperature: settings.LLM.Temperature,
			MaxTokens:   settings.LLM.MaxTokens,
		},
		retry: newRetryPolicy(settings.Retry),
	}
}

// SetPromptStore lets users override the built-in prompts.
// A template that lacks the expected placeholders is ignored.
func (e *ChatEngine) SetPromptStore(store driven.PromptStore) {
	e.prompts = store
}

// prompt loads a template, falling back to the built-in one.
func (e *ChatEngine) prompt(name, fallback string) string {
	if e.prompts == nil {
		return fallback
	}
	tmpl, err := e.prompts.Load(name)
	if err != nil {
		logger.Debug("Using built-in %s prompt: %v", name, err)
		return fallback
	}
	if strings.Count(tmpl, "%s") != strings.Count(fallback, "%s") {
		logger.Warn("Prompt %s has the wrong number of %%s placeholders, using the built-in one", name)
		return fallback
	}
	return tmpl
}

// NewSession starts an empty session. An empty namespace means the configured default.
func (e *ChatEngine) NewSession(namespace string) *domain.Session {
	if namespace == "" {
		namespace = e.namespace
	}
	return domain.NewSession(uuid.NewString(), namespace)
}

// Reset clears the session history and returns it to idle.
// An exchange in flight on the session finishes first.
func (e *ChatEngine) Reset(session *domain.Session) {
	if session == nil {
		return
	}
	defer session.BeginTurn()()
	session.Reset()
	logger.Debug("Session %s reset", session.ID())
}

// Chat runs one turn: retrieve from the session's namespace, generate with
// the history, and record the exchange. A failed turn leaves the history as
// it was and reports the failure in the result. Turns on the same session
// run one at a time.
func (e *ChatEngine) Chat(ctx context.Context, session *domain.Session, query string) domain.ChatResult {
	logger.Section("Chat Turn")

	if session == nil {
		return failedTurn(domain.ErrRetrieval, fmt.Errorf("%w: no session", domain.ErrInvalidInput))
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return failedTurn(domain.ErrRetrieval, fmt.Errorf("%w: empty question", domain.ErrInvalidInput))
	}
	if e.index == nil {
		return failedTurn(domain.ErrRetrieval, &domain.ConfigurationError{Field: "vector.backend", Reason: "no index configured"})
	}
	if e.llm == nil {
		return failedTurn(domain.ErrGeneration, domain.ErrLLMUnavailable)
	}

	defer session.BeginTurn()()
	if session.State() == domain.StateIdle {
		session.SetState(domain.StateAwaitingQuery)
	}
	history := session.Turns()
	session.Append(domain.Turn{Role: domain.RoleUser, Content: query})
	session.SetState(domain.StateRetrieving)
	logger.Debug("Session %s: namespace %q, %d prior turns", session.ID(), session.Namespace(), len(history))

	question := e.standaloneQuestion(ctx, history, query)
	matches, err := e.index.Query(ctx, question, e.k, session.Namespace())
	if err != nil {
		return e.rollback(session, domain.ErrRetrieval, err)
	}
	logger.Debug("Retrieved %d matches", len(matches))

	session.SetState(domain.StateGenerating)
	answer, err := e.generate(ctx, buildMessages(e.prompt(driven.PromptChatSystem, defaultSystemPrompt), history, matches, query))
	if err != nil {
		return e.rollback(session, domain.ErrGeneration, err)
	}

	session.Append(domain.Turn{Role: domain.RoleAssistant, Content: answer, Sources: matches})
	if dropped := session.Truncate(e.maxHistory); dropped > 0 {
		logger.Debug("Dropped %d oldest turns from session %s", dropped, session.ID())
	}
	session.SetState(domain.StateAwaitingQuery)

	return domain.ChatResult{Answer: answer, Sources: matches}
}

func (e *ChatEngine) generate(ctx context.Context, messages []driven.ChatMessage) (string, error) {
	var answer string
	err := e.retry.do(ctx, "generate", func(ctx context.Context) error {
		var err error
		answer, err = e.llm.Chat(ctx, messages, e.options)
		return err
	})
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.New("model returned an empty answer")
	}
	return answer, nil
}

// standaloneQuestion rewrites a follow-up into a question that can be
// retrieved on its own. It falls back to the original on any failure.
func (e *ChatEngine) standaloneQuestion(ctx context.Context, history []domain.Turn, query string) string {
	if !e.condense || len(history) == 0 {
		return query
	}

	var transcript strings.Builder
	for _, t := range history {
		role := "Human"
		if t.Role == domain.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&transcript, "%s: %s\n", role, t.Content)
	}

	messages := []driven.ChatMessage{{
		Role:    driven.RoleUser,
		Content: fmt.Sprintf(e.prompt(driven.PromptCondense, defaultCondensePrompt), transcript.String(), query),
	}}
	opts := driven.ChatOptions{Temperature: 0, MaxTokens: e.options.MaxTokens}

	var rewritten string
	err := e.retry.do(ctx, "condense question", func(ctx context.Context) error {
		var err error
		rewritten, err = e.llm.Chat(ctx, messages, opts)
		return err
	})
	rewritten = strings.TrimSpace(rewritten)
	if err != nil || rewritten == "" {
		logger.Warn("Could not condense question, retrieving with the original: %v", err)
		return query
	}
	logger.Debug("Condensed question: %q", rewritten)
	return rewritten
}

// rollback removes the pending user turn and reports the failure.
func (e *ChatEngine) rollback(session *domain.Session, kind, cause error) domain.ChatResult {
	session.DropLast()
	session.SetState(domain.StateAwaitingQuery)
	logger.Warn("Chat turn failed: %v", cause)
	return failedTurn(kind, cause)
}

func failedTurn(kind, cause error) domain.ChatResult {
	return domain.ChatResult{
		Answer: errorAnswerPrefix + cause.Error(),
		Err:    fmt.Errorf("%w: %w", kind, cause),
	}
}

// buildMessages places the retrieved context in the system message, then
// replays the history, then asks the question.
func buildMessages(system string, history []domain.Turn, matches []domain.Match, query string) []driven.ChatMessage {
	messages := make([]driven.ChatMessage, 0, len(history)+2)
	messages = append(messages, driven.ChatMessage{
		Role:    driven.RoleSystem,
		Content: fmt.Sprintf(system, formatContext(matches)),
	})
	for _, t := range history {
		role := driven.RoleUser
		if t.Role == domain.RoleAssistant {
			role = driven.RoleAssistant
		}
		messages = append(messages, driven.ChatMessage{Role: role, Content: t.Content})
	}
	return append(messages, driven.ChatMessage{Role: driven.RoleUser, Content: query})
}

func formatContext(matches []domain.Match) string {
	if len(matches) == 0 {
		return "(no relevant documents found)"
	}
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n%s", i+1, filepath.Base(m.Metadata.SourceID), m.Text)
	}
	return b.String()
}
