// Package openai provides an LLM service adapter using the OpenAI chat completions API.
package openai

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

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-3.5-turbo"
	DefaultTimeout = 120 * time.Second

	service = "openai"
)

// Config holds configuration for the OpenAI LLM service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL. Compatible APIs can be targeted here.
	BaseURL string

	// Model is the chat model to use.
	Model string

	// Timeout is the request timeout.
	Timeout time.Duration
}

// LLMService generates answers with OpenAI chat completions.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewLLMService creates a new OpenAI LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, &domain.ConfigurationError{Field: "llm.api_key", Reason: "OpenAI API key is required"}
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

	return &LLMService{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Chat returns the assistant reply to messages.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	reqBody := chatRequest{
		Model:       s.model,
		Messages:    make([]chatMessage, len(messages)),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	for i, m := range messages {
		reqBody.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	var resp chatResponse
	err := httpx.DoJSON(ctx, s.client, httpx.Request{
		Service: service,
		Method:  http.MethodPost,
		URL:     s.baseURL + "/chat/completions",
		Headers: map[string]string{"Authorization": "Bearer " + s.apiKey},
		Body:    reqBody,
	}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices returned", service)
	}
	return resp.Choices[0].Message.Content, nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks the API key against the /models endpoint without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	return httpx.DoJSON(ctx, s.client, httpx.Request{
		Service: service,
		Method:  http.MethodGet,
		URL:     s.baseURL + "/models",
		Headers: map[string]string{"Authorization": "Bearer " + s.apiKey},
	}, nil)
}

// Close releases idle connections.
func (s *LLMService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
