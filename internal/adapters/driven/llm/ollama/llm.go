// Package ollama provides an LLM service adapter using a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/httpx"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second

	service = "ollama"
)

// Config holds configuration for the Ollama LLM service.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService generates answers with Ollama's /api/chat endpoint.
type LLMService struct {
	client  *http.Client
	baseURL string
	model   string
}

type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg Config) *LLMService {
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
		model:   cfg.Model,
	}
}

// Chat returns the assistant reply to messages without streaming.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	reqBody := chatRequest{
		Model:    s.model,
		Messages: make([]chatMessage, len(messages)),
		Options:  options{NumPredict: opts.MaxTokens, Temperature: opts.Temperature},
	}
	for i, m := range messages {
		reqBody.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	var resp chatResponse
	err := httpx.DoJSON(ctx, s.client, httpx.Request{
		Service: service,
		Method:  http.MethodPost,
		URL:     s.baseURL + "/api/chat",
		Body:    reqBody,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%s: %s", service, resp.Error)
	}
	return resp.Message.Content, nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks connectivity against /api/tags without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	return httpx.DoJSON(ctx, s.client, httpx.Request{
		Service: service,
		Method:  http.MethodGet,
		URL:     s.baseURL + "/api/tags",
	}, nil)
}

// Close releases idle connections.
func (s *LLMService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
