// Package ollama provides an embedding service adapter using a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/httpx"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 60 * time.Second

	service = "ollama embeddings"
)

// Config holds configuration for the Ollama embedding service.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions is the embedding vector size. Known models fill it in.
	Dimensions int
}

// EmbeddingService generates embeddings using Ollama's /api/embed endpoint,
// which accepts a batch of inputs per request.
type EmbeddingService struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbeddingService creates a new Ollama embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = domain.EmbeddingDimensions()[cfg.Model]
	}
	if cfg.Dimensions == 0 {
		return nil, &domain.ConfigurationError{
			Field:  "embedding.dimensions",
			Reason: fmt.Sprintf("unknown model %q, set the dimensions explicitly", cfg.Model),
		}
	}

	return &EmbeddingService{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts in one request, in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	err := httpx.DoJSON(ctx, s.client, httpx.Request{
		Service: service,
		Method:  http.MethodPost,
		URL:     s.baseURL + "/api/embed",
		Body:    embedRequest{Model: s.model, Input: texts},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%s: got %d embeddings for %d inputs", service, len(resp.Embeddings), len(texts))
	}
	for _, e := range resp.Embeddings {
		if len(e) != s.dimensions {
			return nil, &domain.DimensionMismatchError{Index: s.model, Expected: s.dimensions, Actual: len(e)}
		}
	}
	return resp.Embeddings, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping checks connectivity against /api/tags without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return httpx.DoJSON(ctx, s.client, httpx.Request{
		Service: service,
		Method:  http.MethodGet,
		URL:     s.baseURL + "/api/tags",
	}, nil)
}

// Close releases idle connections.
func (s *EmbeddingService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
