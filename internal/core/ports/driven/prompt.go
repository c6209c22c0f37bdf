package driven

// Prompt names.
const (
	// PromptChatSystem is the system prompt of a chat turn. Its single %s
	// receives the retrieved context.
	PromptChatSystem = "chat_system"

	// PromptCondense rewrites a follow-up into a standalone question. Its two
	// %s receive the transcript and the follow-up.
	PromptCondense = "condense_question"
)

// PromptStore loads prompt templates that users may customise.
type PromptStore interface {
	// Load returns the template for name.
	Load(name string) (string, error)
}
