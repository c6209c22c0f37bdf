package driven

import "context"

// LLMService generates text from a conversation.
//
// Implementations may include:
//   - OpenAI (GPT-4o, GPT-3.5)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Chat returns the assistant reply to the given messages.
	// A "system" message, if present, comes first.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
