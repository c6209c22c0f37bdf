package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// SupportsEmbeddings returns true if the provider offers an embeddings API.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOpenAI || p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// VectorBackendKind selects the vector store implementation.
type VectorBackendKind string

// Available vector backends.
const (
	// VectorBackendMemory keeps vectors in process memory.
	VectorBackendMemory VectorBackendKind = "memory"

	// VectorBackendSQLite persists vectors in a local SQLite database.
	VectorBackendSQLite VectorBackendKind = "sqlite"

	// VectorBackendQdrant talks to a Qdrant server over REST.
	VectorBackendQdrant VectorBackendKind = "qdrant"

	// VectorBackendPinecone talks to Pinecone over REST.
	VectorBackendPinecone VectorBackendKind = "pinecone"
)

// IsValid returns true if the backend is recognised.
func (k VectorBackendKind) IsValid() bool {
	switch k {
	case VectorBackendMemory, VectorBackendSQLite, VectorBackendQdrant, VectorBackendPinecone:
		return true
	default:
		return false
	}
}

// IsRemote returns true if the backend is a network service.
func (k VectorBackendKind) IsRemote() bool {
	return k == VectorBackendQdrant || k == VectorBackendPinecone
}

// String returns the string representation.
func (k VectorBackendKind) String() string {
	return string(k)
}

// Description returns a human-readable description of the backend.
func (k VectorBackendKind) Description() string {
	switch k {
	case VectorBackendMemory:
		return "In-memory (not persisted)"
	case VectorBackendSQLite:
		return "SQLite (local file)"
	case VectorBackendQdrant:
		return "Qdrant (server)"
	case VectorBackendPinecone:
		return "Pinecone (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the embedding vector size. It fixes the index dimension.
	Dimensions int

	// RequestsPerSecond throttles embedding calls. 0 disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.SupportsEmbeddings() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds generation provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI, Anthropic).
	APIKey string

	// Temperature controls randomness of answers.
	Temperature float64

	// MaxTokens bounds the answer length. 0 leaves it to the provider.
	MaxTokens int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorSettings holds vector backend configuration.
type VectorSettings struct {
	// Backend selects the implementation.
	Backend VectorBackendKind

	// Index is the index (collection) name.
	Index string

	// Metric is the similarity metric used when the index is created.
	Metric Metric

	// URL is the server address for Qdrant.
	URL string

	// APIKey authenticates against Qdrant or Pinecone.
	APIKey string

	// Cloud and Region place a new Pinecone serverless index.
	Cloud  string
	Region string

	// DataDir is where the SQLite backend keeps its database.
	DataDir string
}

// ChunkingSettings holds splitter configuration.
type ChunkingSettings struct {
	// Size is the maximum chunk length in characters.
	Size int

	// Overlap is the number of characters shared by adjacent chunks.
	Overlap int
}

// RetrievalSettings holds query defaults.
type RetrievalSettings struct {
	// K is the number of matches retrieved per query.
	K int

	// Namespace is the namespace used when none is given.
	Namespace string
}

// ChatSettings holds conversational engine configuration.
type ChatSettings struct {
	// MaxHistoryTurns bounds the replayed history. 0 disables truncation.
	MaxHistoryTurns int

	// CondenseQuestion rewrites follow-up questions into standalone ones before retrieval.
	CondenseQuestion bool
}

// RetrySettings bounds backend calls.
type RetrySettings struct {
	// MaxAttempts is the total number of tries for a transient failure.
	MaxAttempts int

	// InitialBackoff is the delay after the first failure; it doubles each attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration

	// Timeout bounds a single backend call.
	Timeout time.Duration
}

// Settings is the full application configuration.
type Settings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Vector    VectorSettings
	Chunking  ChunkingSettings
	Retrieval RetrievalSettings
	Chat      ChatSettings
	Retry     RetrySettings
}

// Default configuration values.
const (
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 200
	DefaultK               = 4
	DefaultIndexName       = "ragchat"
	DefaultTemperature     = 0.7
	DefaultMaxHistoryTurns = 20
	DefaultMaxAttempts     = 3
	DefaultInitialBackoff  = 200 * time.Millisecond
	DefaultMaxBackoff      = 5 * time.Second
	DefaultCallTimeout     = 30 * time.Second
)

// DefaultSettings returns settings with sensible defaults.
// API keys are left empty; they come from the environment.
func DefaultSettings() Settings {
	return Settings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOpenAI,
			Model:      DefaultEmbeddingModels()[AIProviderOpenAI],
			Dimensions: EmbeddingDimensions()[DefaultEmbeddingModels()[AIProviderOpenAI]],
		},
		LLM: LLMSettings{
			Provider:    AIProviderOpenAI,
			Model:       DefaultLLMModels()[AIProviderOpenAI],
			Temperature: DefaultTemperature,
		},
		Vector: VectorSettings{
			Backend: VectorBackendSQLite,
			Index:   DefaultIndexName,
			Metric:  MetricCosine,
			Cloud:   "aws",
			Region:  "us-east-1",
		},
		Chunking: ChunkingSettings{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		Retrieval: RetrievalSettings{
			K:         DefaultK,
			Namespace: DefaultNamespace,
		},
		Chat: ChatSettings{
			MaxHistoryTurns: DefaultMaxHistoryTurns,
		},
		Retry: RetrySettings{
			MaxAttempts:    DefaultMaxAttempts,
			InitialBackoff: DefaultInitialBackoff,
			MaxBackoff:     DefaultMaxBackoff,
			Timeout:        DefaultCallTimeout,
		},
	}
}

// Validate checks the settings and returns the first problem as a *ConfigurationError.
func (s Settings) Validate() error {
	switch {
	case !s.Embedding.Provider.SupportsEmbeddings():
		return &ConfigurationError{Field: "embedding.provider",
			Reason: fmt.Sprintf("%q does not provide embeddings", s.Embedding.Provider)}
	case s.Embedding.Provider.RequiresAPIKey() && s.Embedding.APIKey == "":
		return &ConfigurationError{Field: "embedding.api_key", Reason: "missing API key"}
	case s.Embedding.Dimensions <= 0:
		return &ConfigurationError{Field: "embedding.dimensions", Reason: "must be positive"}
	case !s.LLM.Provider.IsValid():
		return &ConfigurationError{Field: "llm.provider", Reason: fmt.Sprintf("unknown provider %q", s.LLM.Provider)}
	case s.LLM.Provider.RequiresAPIKey() && s.LLM.APIKey == "":
		return &ConfigurationError{Field: "llm.api_key", Reason: "missing API key"}
	case !s.Vector.Backend.IsValid():
		return &ConfigurationError{Field: "vector.backend", Reason: fmt.Sprintf("unknown backend %q", s.Vector.Backend)}
	case !s.Vector.Metric.IsValid():
		return &ConfigurationError{Field: "vector.metric", Reason: fmt.Sprintf("unknown metric %q", s.Vector.Metric)}
	case s.Vector.Index == "":
		return &ConfigurationError{Field: "vector.index", Reason: "must not be empty"}
	case s.Vector.Backend == VectorBackendQdrant && s.Vector.URL == "":
		return &ConfigurationError{Field: "vector.url", Reason: "qdrant needs a server URL"}
	case s.Vector.Backend == VectorBackendPinecone && s.Vector.APIKey == "":
		return &ConfigurationError{Field: "vector.api_key", Reason: "missing Pinecone API key"}
	}
	return s.validateLimits()
}

func (s Settings) validateLimits() error {
	switch {
	case s.Chunking.Size <= 0:
		return &ConfigurationError{Field: "chunking.size", Reason: "must be positive"}
	case s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.Size:
		return &ConfigurationError{Field: "chunking.overlap", Reason: "must be at least 0 and less than chunking.size"}
	case s.Retrieval.K < 1:
		return &ConfigurationError{Field: "retrieval.k", Reason: "must be at least 1"}
	case s.Chat.MaxHistoryTurns < 0:
		return &ConfigurationError{Field: "chat.max_history_turns", Reason: "must not be negative"}
	case s.Retry.MaxAttempts < 1:
		return &ConfigurationError{Field: "retry.max_attempts", Reason: "must be at least 1"}
	}
	return nil
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-large",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-3.5-turbo",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
