package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedDims     = "embedding.dimensions"
	keyEmbedRPS      = "embedding.requests_per_second"
	keyLLMProvider   = "llm.provider"
	keyLLMModel      = "llm.model"
	keyLLMBaseURL    = "llm.base_url"
	keyLLMTemp       = "llm.temperature"
	keyLLMMaxTokens  = "llm.max_tokens"
	keyVectorBackend = "vector.backend"
	keyVectorIndex   = "vector.index"
	keyVectorMetric  = "vector.metric"
	keyVectorURL     = "vector.url"
	keyVectorCloud   = "vector.cloud"
	keyVectorRegion  = "vector.region"
	keyVectorDataDir = "vector.data_dir"
	keyChunkSize     = "chunking.size"
	keyChunkOverlap  = "chunking.overlap"
	keyRetrievalK    = "retrieval.k"
	keyNamespace     = "retrieval.namespace"
	keyMaxHistory    = "chat.max_history_turns"
	keyCondense      = "chat.condense_question"
	keyRetryAttempts = "retry.max_attempts"
	keyRetryInitial  = "retry.initial_backoff_ms"
	keyRetryMax      = "retry.max_backoff_ms"
	keyRetryTimeout  = "retry.timeout_ms"
)

// Environment variables holding secrets and deployment overrides.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvOpenAIKey           = "OPENAI_API_KEY"
	EnvAnthropicKey        = "ANTHROPIC_API_KEY"
	EnvPineconeKey         = "PINECONE_API_KEY"
	EnvPineconeEnvironment = "PINECONE_ENVIRONMENT"
	EnvPineconeIndex       = "PINECONE_INDEX_NAME"
	EnvQdrantURL           = "QDRANT_URL"
	EnvQdrantKey           = "QDRANT_API_KEY"
)

// SecretNames lists the API key variables the settings command can store.
var SecretNames = []string{EnvOpenAIKey, EnvAnthropicKey, EnvPineconeKey, EnvQdrantKey}

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
)

// settingKinds maps every settable key to the type it is stored as.
var settingKinds = map[string]valueKind{
	keyEmbedProvider: kindString,
	keyEmbedModel:    kindString,
	keyEmbedBaseURL:  kindString,
	keyEmbedDims:     kindInt,
	keyEmbedRPS:      kindFloat,
	keyLLMProvider:   kindString,
	keyLLMModel:      kindString,
	keyLLMBaseURL:    kindString,
	keyLLMTemp:       kindFloat,
	keyLLMMaxTokens:  kindInt,
	keyVectorBackend: kindString,
	keyVectorIndex:   kindString,
	keyVectorMetric:  kindString,
	keyVectorURL:     kindString,
	keyVectorCloud:   kindString,
	keyVectorRegion:  kindString,
	keyVectorDataDir: kindString,
	keyChunkSize:     kindInt,
	keyChunkOverlap:  kindInt,
	keyRetrievalK:    kindInt,
	keyNamespace:     kindString,
	keyMaxHistory:    kindInt,
	keyCondense:      kindBool,
	keyRetryAttempts: kindInt,
	keyRetryInitial:  kindInt,
	keyRetryMax:      kindInt,
	keyRetryTimeout:  kindInt,
}

// SettingsService resolves settings from defaults, the config file and the
// environment, in that order of precedence.
type SettingsService struct {
	configStore driven.ConfigStore
	secrets     driven.SecretStore
}

// NewSettingsService creates a new settings service.
// The secrets parameter is optional (can be nil).
func NewSettingsService(configStore driven.ConfigStore, secrets driven.SecretStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		secrets:     secrets,
	}
}

// Get returns the effective settings. It does not validate them; call
// Settings.Validate before building services from the result.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := domain.DefaultSettings()

	embedProvider := domain.AIProvider(s.getString(keyEmbedProvider, defaults.Embedding.Provider.String()))
	embedModel := s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[embedProvider])
	defaultDims := defaults.Embedding.Dimensions
	if d, ok := domain.EmbeddingDimensions()[embedModel]; ok {
		defaultDims = d
	}

	llmProvider := domain.AIProvider(s.getString(keyLLMProvider, defaults.LLM.Provider.String()))

	settings := &domain.Settings{
		Embedding: domain.EmbeddingSettings{
			Provider:          embedProvider,
			Model:             embedModel,
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL),
			Dimensions:        s.getInt(keyEmbedDims, defaultDims),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, defaults.Embedding.RequestsPerSecond),
		},
		LLM: domain.LLMSettings{
			Provider:    llmProvider,
			Model:       s.getString(keyLLMModel, domain.DefaultLLMModels()[llmProvider]),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL),
			Temperature: s.getFloat(keyLLMTemp, defaults.LLM.Temperature),
			MaxTokens:   s.getInt(keyLLMMaxTokens, defaults.LLM.MaxTokens),
		},
		Vector: domain.VectorSettings{
			Backend: domain.VectorBackendKind(s.getString(keyVectorBackend, defaults.Vector.Backend.String())),
			Index:   s.getString(keyVectorIndex, defaults.Vector.Index),
			Metric:  domain.Metric(s.getString(keyVectorMetric, defaults.Vector.Metric.String())),
			URL:     s.configStore.GetString(keyVectorURL),
			Cloud:   s.getString(keyVectorCloud, defaults.Vector.Cloud),
			Region:  s.getString(keyVectorRegion, defaults.Vector.Region),
			DataDir: s.configStore.GetString(keyVectorDataDir),
		},
		Chunking: domain.ChunkingSettings{
			Size:    s.getInt(keyChunkSize, defaults.Chunking.Size),
			Overlap: s.getInt(keyChunkOverlap, defaults.Chunking.Overlap),
		},
		Retrieval: domain.RetrievalSettings{
			K:         s.getInt(keyRetrievalK, defaults.Retrieval.K),
			Namespace: s.getString(keyNamespace, defaults.Retrieval.Namespace),
		},
		Chat: domain.ChatSettings{
			MaxHistoryTurns:  s.getInt(keyMaxHistory, defaults.Chat.MaxHistoryTurns),
			CondenseQuestion: s.getBool(keyCondense, defaults.Chat.CondenseQuestion),
		},
		Retry: domain.RetrySettings{
			MaxAttempts:    s.getInt(keyRetryAttempts, defaults.Retry.MaxAttempts),
			InitialBackoff: s.getMillis(keyRetryInitial, defaults.Retry.InitialBackoff),
			MaxBackoff:     s.getMillis(keyRetryMax, defaults.Retry.MaxBackoff),
			Timeout:        s.getMillis(keyRetryTimeout, defaults.Retry.Timeout),
		},
	}

	s.applyEnvironment(settings)
	return settings, nil
}

// applyEnvironment fills API keys and lets deployment variables override the file.
func (s *SettingsService) applyEnvironment(settings *domain.Settings) {
	if s.secrets == nil {
		return
	}

	settings.Embedding.APIKey = s.providerKey(settings.Embedding.Provider)
	settings.LLM.APIKey = s.providerKey(settings.LLM.Provider)

	switch settings.Vector.Backend {
	case domain.VectorBackendPinecone:
		settings.Vector.APIKey, _ = s.secrets.Lookup(EnvPineconeKey)
		if v, ok := s.secrets.Lookup(EnvPineconeIndex); ok {
			settings.Vector.Index = v
		}
		if v, ok := s.secrets.Lookup(EnvPineconeEnvironment); ok {
			settings.Vector.Region = v
		}
	case domain.VectorBackendQdrant:
		settings.Vector.APIKey, _ = s.secrets.Lookup(EnvQdrantKey)
		if v, ok := s.secrets.Lookup(EnvQdrantURL); ok {
			settings.Vector.URL = v
		}
	}
}

func (s *SettingsService) providerKey(provider domain.AIProvider) string {
	var name string
	switch provider {
	case domain.AIProviderOpenAI:
		name = EnvOpenAIKey
	case domain.AIProviderAnthropic:
		name = EnvAnthropicKey
	default:
		return ""
	}
	v, _ := s.secrets.Lookup(name)
	return v
}

// Set parses value for key and persists it.
func (s *SettingsService) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	kind, ok := settingKinds[key]
	if !ok {
		return &domain.ConfigurationError{Field: key, Reason: "unknown setting"}
	}

	parsed, err := parseValue(key, kind, strings.TrimSpace(value))
	if err != nil {
		return err
	}
	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SaveSecrets persists API keys outside the config file.
func (s *SettingsService) SaveSecrets(values map[string]string) error {
	if s.secrets == nil {
		return &domain.ConfigurationError{Field: "secrets", Reason: "no secret store configured"}
	}
	if err := s.secrets.Save(values); err != nil {
		return fmt.Errorf("save secrets: %w", err)
	}
	return nil
}

// SecretNames returns the API key variables SaveSecrets accepts.
func (s *SettingsService) SecretNames() []string {
	return append([]string(nil), SecretNames...)
}

// Keys returns every settable key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConfigPath returns the config file location.
func (s *SettingsService) ConfigPath() string {
	return s.configStore.Path()
}

func parseValue(key string, kind valueKind, value string) (any, error) {
	invalid := func(reason string) error {
		return &domain.ConfigurationError{Field: key, Reason: reason}
	}

	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, invalid(fmt.Sprintf("%q is not an integer", value))
		}
		if n < 0 {
			return nil, invalid("must not be negative")
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, invalid(fmt.Sprintf("%q is not a number", value))
		}
		if f < 0 {
			return nil, invalid("must not be negative")
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, invalid(fmt.Sprintf("%q is not true or false", value))
		}
		return b, nil
	}

	switch key {
	case keyEmbedProvider:
		if !domain.AIProvider(value).SupportsEmbeddings() {
			return nil, invalid(fmt.Sprintf("%q does not provide embeddings", value))
		}
	case keyLLMProvider:
		if !domain.AIProvider(value).IsValid() {
			return nil, invalid(fmt.Sprintf("unknown provider %q", value))
		}
	case keyVectorBackend:
		if !domain.VectorBackendKind(value).IsValid() {
			return nil, invalid(fmt.Sprintf("unknown backend %q", value))
		}
	case keyVectorMetric:
		if !domain.Metric(value).IsValid() {
			return nil, invalid(fmt.Sprintf("unknown metric %q", value))
		}
	}
	return value, nil
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getMillis(key string, defaultVal time.Duration) time.Duration {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return time.Duration(s.configStore.GetInt(key)) * time.Millisecond
}
