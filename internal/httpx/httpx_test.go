package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func TestNewStatusError_Classification(t *testing.T) {
	tests := []struct {
		status int
		is     []error
		isNot  []error
	}{
		{401, []error{domain.ErrAuthInvalid}, []error{domain.ErrTransient}},
		{403, []error{domain.ErrAuthInvalid}, []error{domain.ErrTransient}},
		{404, []error{domain.ErrIndexNotFound}, []error{domain.ErrTransient}},
		{408, []error{domain.ErrTransient}, []error{domain.ErrRateLimited}},
		{429, []error{domain.ErrRateLimited, domain.ErrTransient}, []error{domain.ErrAuthInvalid}},
		{500, []error{domain.ErrTransient}, nil},
		{503, []error{domain.ErrTransient}, nil},
		{400, nil, []error{domain.ErrTransient, domain.ErrAuthInvalid, domain.ErrIndexNotFound}},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := NewStatusError("svc", tt.status, []byte("body"), domain.ErrIndexNotFound)
			for _, target := range tt.is {
				assert.ErrorIs(t, err, target)
			}
			for _, target := range tt.isNot {
				assert.False(t, errors.Is(err, target), "unexpected %v", target)
			}
			assert.Equal(t, tt.status, err.HTTPStatusCode())
		})
	}
}

func TestNewStatusError_NotFoundOptional(t *testing.T) {
	err := NewStatusError("openai", 404, nil, nil)
	assert.False(t, errors.Is(err, domain.ErrIndexNotFound))
	assert.Equal(t, "openai: http 404", err.Error())
}

func TestNewStatusError_TruncatesBody(t *testing.T) {
	err := NewStatusError("svc", 500, []byte(strings.Repeat("x", 2000)), nil)
	assert.Less(t, len(err.Error()), 600)
}

func TestTransport(t *testing.T) {
	err := Transport("qdrant", errors.New("connection refused"))
	assert.ErrorIs(t, err, domain.ErrTransient)

	err = Transport("qdrant", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, domain.ErrTransient))
}

func TestRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Equal(t, time.Second, RetryAfter(resp, time.Second, time.Minute))

	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, RetryAfter(resp, time.Second, time.Minute))
	assert.Equal(t, 5*time.Second, RetryAfter(resp, time.Second, 5*time.Second))
	assert.Equal(t, time.Second, RetryAfter(nil, time.Second, 0))
}

func TestDoJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("X-Empty"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer server.Close()

	var out struct {
		Result string `json:"result"`
	}
	err := DoJSON(context.Background(), server.Client(), Request{
		Service: "test",
		Method:  http.MethodPost,
		URL:     server.URL,
		Headers: map[string]string{"api-key": "secret", "X-Empty": ""},
		Body:    map[string]int{"a": 1},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "ok", out.Result)
}

func TestDoJSON_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such collection", http.StatusNotFound)
	}))
	defer server.Close()

	err := DoJSON(context.Background(), server.Client(), Request{
		Service:  "qdrant",
		Method:   http.MethodGet,
		URL:      server.URL,
		NotFound: domain.ErrIndexNotFound,
	}, nil)

	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
	assert.Contains(t, err.Error(), "no such collection")
}

func TestDoJSON_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := DoJSON(context.Background(), http.DefaultClient, Request{Service: "x", Method: http.MethodGet, URL: url}, nil)
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestCheck_RetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := DoJSON(context.Background(), server.Client(), Request{Service: "openai", Method: http.MethodGet, URL: server.URL}, nil)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 3*time.Second, RetryAfterOf(err))
	assert.Zero(t, RetryAfterOf(errors.New("plain")))
}
