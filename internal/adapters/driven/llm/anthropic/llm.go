// Package anthropic provides an LLM service adapter using the Anthropic Messages API.
package anthropic

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
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	anthropicVersion = "2023-06-01"
	service          = "anthropic"
)

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService generates answers with the Anthropic Messages API.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// NewLLMService creates a new Anthropic LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, &domain.ConfigurationError{Field: "llm.api_key", Reason: "Anthropic API key is required"}
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

// Chat returns the assistant reply to messages. System messages are moved
// to the request's system field; consecutive turns of one role are merged
// because the API requires alternating roles.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	reqBody := messagesRequest{
		Model:       s.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if reqBody.MaxTokens <= 0 {
		reqBody.MaxTokens = DefaultMaxTokens
	}
	// The Messages API caps temperature at 1.
	reqBody.Temperature = min(max(reqBody.Temperature, 0), 1)

	var system []string
	for _, m := range messages {
		if m.Role == driven.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		if n := len(reqBody.Messages); n > 0 && reqBody.Messages[n-1].Role == m.Role {
			reqBody.Messages[n-1].Content += "\n\n" + m.Content
			continue
		}
		reqBody.Messages = append(reqBody.Messages, message{Role: m.Role, Content: m.Content})
	}
	reqBody.System = strings.Join(system, "\n\n")
	if len(reqBody.Messages) == 0 {
		return "", fmt.Errorf("%s: %w: no user message", service, domain.ErrInvalidInput)
	}

	var resp messagesResponse
	err := httpx.DoJSON(ctx, s.client, httpx.Request{
		Service: service,
		Method:  http.MethodPost,
		URL:     s.baseURL + "/v1/messages",
		Headers: s.headers(),
		Body:    reqBody,
	}, &resp)
	if err != nil {
		return "", err
	}

	var answer strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			answer.WriteString(block.Text)
		}
	}
	if answer.Len() == 0 {
		return "", fmt.Errorf("%s: no text content returned (stop reason %q)", service, resp.StopReason)
	}
	return answer.String(), nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks the API key against the /v1/models endpoint.
func (s *LLMService) Ping(ctx context.Context) error {
	return httpx.DoJSON(ctx, s.client, httpx.Request{
		Service: service,
		Method:  http.MethodGet,
		URL:     s.baseURL + "/v1/models",
		Headers: s.headers(),
	}, nil)
}

// Close releases idle connections.
func (s *LLMService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *LLMService) headers() map[string]string {
	return map[string]string{
		"x-api-key":         s.apiKey,
		"anthropic-version": anthropicVersion,
	}
}
