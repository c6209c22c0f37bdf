// Package messages defines Bubbletea message types for the chat TUI.
package messages

import (
	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// AnswerReceived carries the outcome of a chat turn back to the model.
// A failed turn has Result.Err set and a readable Result.Answer.
type AnswerReceived struct {
	Question string
	Result   domain.ChatResult
}

// NamespaceChanged is sent after the session switched namespace.
type NamespaceChanged struct {
	Namespace string
}

// NamespacesListed carries the namespaces of the index.
type NamespacesListed struct {
	Namespaces []domain.NamespaceStats
	Err        error
}

// SessionReset is sent after the conversation history was cleared.
type SessionReset struct{}

// ErrorOccurred is sent when an operation outside a chat turn fails.
type ErrorOccurred struct {
	Err error
}
