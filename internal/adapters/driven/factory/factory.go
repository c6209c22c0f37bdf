// Package factory builds the driven adapters selected by settings.
package factory

import (
	"context"
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/ragchat/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/ragchat/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/ragchat/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/ragchat/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/ragchat/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/pinecone"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// pingTimeout bounds connectivity checks.
const pingTimeout = 5 * time.Second

// Services holds the adapters a command needs.
type Services struct {
	Embedding driven.EmbeddingService
	LLM       driven.LLMService
	Vector    driven.VectorBackend

	// Warnings are non-fatal problems, such as an unconfigured LLM.
	Warnings []string
}

// Close releases every adapter that was created.
func (s *Services) Close() {
	if s.Embedding != nil {
		_ = s.Embedding.Close()
	}
	if s.LLM != nil {
		_ = s.LLM.Close()
	}
	if s.Vector != nil {
		_ = s.Vector.Close()
	}
}

// Options selects which adapters Create builds.
type Options struct {
	// NeedLLM makes a missing or broken LLM configuration an error instead
	// of a warning.
	NeedLLM bool
}

// Create builds the embedding service and vector backend, plus the LLM
// service when it is configured. Settings are validated first, except for
// the LLM when it is not needed.
func Create(settings domain.Settings, opts Options) (*Services, error) {
	if err := validate(settings, opts.NeedLLM); err != nil {
		return nil, err
	}

	svcs := &Services{}
	var err error

	svcs.Embedding, err = CreateEmbeddingService(settings.Embedding, settings.Retry.Timeout)
	if err != nil {
		return nil, err
	}

	svcs.Vector, err = CreateVectorBackend(settings.Vector, settings.Retry.Timeout)
	if err != nil {
		svcs.Close()
		return nil, err
	}

	svcs.LLM, err = CreateLLMService(settings.LLM, 0)
	switch {
	case err != nil && opts.NeedLLM:
		svcs.Close()
		return nil, err
	case err != nil:
		svcs.Warnings = append(svcs.Warnings, fmt.Sprintf("LLM unavailable: %v", err))
		logger.Debug("LLM not created: %v", err)
	}
	return svcs, nil
}

// validate checks settings. Without needLLM the LLM section is swapped for
// a keyless one so its problems surface as warnings from Create instead.
func validate(settings domain.Settings, needLLM bool) error {
	if !needLLM {
		settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama}
	}
	return settings.Validate()
}

// CreateEmbeddingService creates the embedding service for settings.
// timeout bounds each request; zero keeps the adapter default.
func CreateEmbeddingService(settings domain.EmbeddingSettings, timeout time.Duration) (driven.EmbeddingService, error) {
	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    timeout,
			Dimensions: settings.Dimensions,
		})
	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Timeout:           timeout,
			Dimensions:        settings.Dimensions,
			RequestsPerSecond: settings.RequestsPerSecond,
		})
	case domain.AIProviderAnthropic:
		return nil, &domain.ConfigurationError{
			Field:  "embedding.provider",
			Reason: "anthropic does not provide embeddings, use openai or ollama",
		}
	default:
		return nil, &domain.ConfigurationError{
			Field:  "embedding.provider",
			Reason: fmt.Sprintf("unsupported provider %q", settings.Provider),
		}
	}
}

// CreateLLMService creates the generation service for settings.
func CreateLLMService(settings domain.LLMSettings, timeout time.Duration) (driven.LLMService, error) {
	if !settings.IsConfigured() {
		if settings.Provider.RequiresAPIKey() {
			return nil, fmt.Errorf("%w: missing API key for %s", domain.ErrLLMUnavailable, settings.Provider)
		}
		return nil, fmt.Errorf("%w: unsupported provider %q", domain.ErrLLMUnavailable, settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: timeout,
		}), nil
	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: timeout,
		})
	default:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: timeout,
		})
	}
}

// CreateVectorBackend creates the vector store selected by settings.
func CreateVectorBackend(settings domain.VectorSettings, timeout time.Duration) (driven.VectorBackend, error) {
	switch settings.Backend {
	case domain.VectorBackendMemory:
		return memory.NewVectorStore(), nil
	case domain.VectorBackendSQLite:
		store, err := sqlite.NewStore(settings.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite vector store: %w", err)
		}
		return store, nil
	case domain.VectorBackendQdrant:
		return qdrant.New(qdrant.Config{
			URL:     settings.URL,
			APIKey:  settings.APIKey,
			Timeout: timeout,
		})
	case domain.VectorBackendPinecone:
		return pinecone.New(pinecone.Config{
			APIKey:  settings.APIKey,
			Cloud:   settings.Cloud,
			Region:  settings.Region,
			Timeout: timeout,
		})
	default:
		return nil, &domain.ConfigurationError{
			Field:  "vector.backend",
			Reason: fmt.Sprintf("unknown backend %q", settings.Backend),
		}
	}
}

// CheckResult reports the reachability of one adapter.
type CheckResult struct {
	Component string
	Name      string
	Err       error
}

// OK returns true if the check passed.
func (r CheckResult) OK() bool {
	return r.Err == nil
}

// Check pings every created adapter. Adapters that are nil are skipped.
func Check(ctx context.Context, svcs *Services, vectorName string) []CheckResult {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	var results []CheckResult
	if svcs.Embedding != nil {
		results = append(results, CheckResult{
			Component: "embedding",
			Name:      svcs.Embedding.ModelName(),
			Err:       svcs.Embedding.Ping(ctx),
		})
	}
	if svcs.LLM != nil {
		results = append(results, CheckResult{
			Component: "llm",
			Name:      svcs.LLM.ModelName(),
			Err:       svcs.LLM.Ping(ctx),
		})
	}
	if svcs.Vector != nil {
		_, err := svcs.Vector.ListIndexes(ctx)
		results = append(results, CheckResult{Component: "vector", Name: vectorName, Err: err})
	}
	return results
}

// Err joins the failed checks, or returns nil when all passed.
func Err(results []CheckResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Component, r.Err))
		}
	}
	return errors.Join(errs...)
}
