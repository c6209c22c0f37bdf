package driving

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// ChatService answers questions over the indexed corpus.
type ChatService interface {
	// NewSession starts an empty conversation scoped to namespace.
	NewSession(namespace string) *domain.Session

	// Chat answers query using retrieval from the session's namespace and the
	// session history. It always returns a result; failures are reported in
	// ChatResult.Err with a readable Answer.
	Chat(ctx context.Context, session *domain.Session, query string) domain.ChatResult

	// Reset clears the session history. The index is not touched.
	Reset(session *domain.Session)
}
