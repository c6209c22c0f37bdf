package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func newTestService(t *testing.T, handler http.HandlerFunc, cfg Config) *EmbeddingService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "sk-test"
	}
	svc, err := NewEmbeddingService(cfg)
	require.NoError(t, err)
	return svc
}

func TestNewEmbeddingService(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewEmbeddingService(Config{APIKey: "k", Model: "custom-model"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	svc, err := NewEmbeddingService(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, 3072, svc.Dimensions())
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.False(t, svc.sendDims)

	svc, err = NewEmbeddingService(Config{APIKey: "k", Model: "text-embedding-3-small", Dimensions: 256})
	require.NoError(t, err)
	assert.Equal(t, 256, svc.Dimensions())
	assert.True(t, svc.sendDims)
}

func TestEmbedBatch_ReordersByIndex(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"first", "second"}, req.Input)
		assert.Equal(t, 2, req.Dimensions)

		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0,1]},
			{"index":0,"embedding":[1,0]}
		]}`))
	}, Config{Model: "text-embedding-3-small", Dimensions: 2})

	vectors, err := svc.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}

func TestEmbedBatch_Empty(t *testing.T) {
	svc := newTestService(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}, Config{})

	vectors, err := svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}]}`))
	}, Config{Model: "text-embedding-3-small", Dimensions: 2})

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0,0]}]}`))
	}, Config{Model: "text-embedding-3-small", Dimensions: 2})

	_, err := svc.Embed(context.Background(), "a")
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbed_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, domain.ErrAuthInvalid},
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited},
		{"server error", http.StatusBadGateway, domain.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":{"message":"nope"}}`, tt.status)
			}, Config{})

			_, err := svc.Embed(context.Background(), "a")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPing(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}, Config{})

	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
