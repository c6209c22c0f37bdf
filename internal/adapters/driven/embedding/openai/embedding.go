// Package openai provides an embedding service adapter using the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/httpx"
	"github.com/custodia-labs/ragchat/internal/ratelimit"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-large"
	DefaultTimeout = 60 * time.Second

	service = "openai embeddings"
)

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL. Compatible APIs can be targeted here.
	BaseURL string

	// Model is the embedding model to use.
	Model string

	// Timeout is the request timeout.
	Timeout time.Duration

	// Dimensions overrides the model's native size.
	// Only text-embedding-3-* models accept it.
	Dimensions int

	// RequestsPerSecond throttles requests. 0 disables throttling.
	RequestsPerSecond float64
}

// EmbeddingService generates embeddings using the OpenAI API.
type EmbeddingService struct {
	client     *http.Client
	limiter    *ratelimit.Limiter
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	sendDims   bool
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, &domain.ConfigurationError{Field: "embedding.api_key", Reason: "OpenAI API key is required"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	native, known := domain.EmbeddingDimensions()[cfg.Model]
	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = native
	}
	if dimensions == 0 {
		return nil, &domain.ConfigurationError{
			Field:  "embedding.dimensions",
			Reason: fmt.Sprintf("unknown model %q, set the dimensions explicitly", cfg.Model),
		}
	}

	return &EmbeddingService{
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    ratelimit.New(ratelimit.Config{RequestsPerSecond: cfg.RequestsPerSecond}),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: dimensions,
		sendDims:   strings.HasPrefix(cfg.Model, "text-embedding-3-") && (!known || dimensions != native),
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

// EmbedBatch embeds texts in one request and returns vectors in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody := embeddingRequest{Model: s.model, Input: texts}
	if s.sendDims {
		reqBody.Dimensions = s.dimensions
	}

	var resp embeddingResponse
	err := httpx.DoJSON(ctx, s.client, httpx.Request{
		Service: service,
		Method:  http.MethodPost,
		URL:     s.baseURL + "/embeddings",
		Headers: map[string]string{"Authorization": "Bearer " + s.apiKey},
		Body:    reqBody,
	}, &resp)
	if errors.Is(err, domain.ErrRateLimited) {
		s.limiter.Backoff(httpx.RetryAfterOf(err))
	}
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s: got %d embeddings for %d inputs", service, len(resp.Data), len(texts))
	}
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%s: embedding index %d out of range", service, d.Index)
		}
		if len(d.Embedding) != s.dimensions {
			return nil, &domain.DimensionMismatchError{Index: s.model, Expected: s.dimensions, Actual: len(d.Embedding)}
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping checks the API key against the /models endpoint without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return httpx.DoJSON(ctx, s.client, httpx.Request{
		Service: service,
		Method:  http.MethodGet,
		URL:     s.baseURL + "/models",
		Headers: map[string]string{"Authorization": "Bearer " + s.apiKey},
	}, nil)
}

// Close releases idle connections.
func (s *EmbeddingService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
