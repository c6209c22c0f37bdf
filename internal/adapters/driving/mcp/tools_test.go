package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func TestServer_handleQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("returns matches", func(t *testing.T) {
		index := &mockIndexService{
			matches: []domain.Match{{
				ID:    "rec-1",
				Score: 0.95,
				Text:  "The quick brown fox",
				Metadata: domain.RecordMetadata{
					SourceID:      "fox.txt",
					SequenceIndex: 2,
					Namespace:     "animals",
				},
			}},
		}
		server, err := NewServer(&Ports{Index: index})
		require.NoError(t, err)

		_, output, err := server.handleQuery(ctx, nil, QueryInput{Text: "fox", Namespace: "animals", K: 3})

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Matches, 1)
		assert.Equal(t, "rec-1", output.Matches[0].ID)
		assert.Equal(t, "fox.txt", output.Matches[0].SourceID)
		assert.Equal(t, 2, output.Matches[0].SequenceIndex)
		assert.Equal(t, "animals", output.Matches[0].Namespace)
		assert.Equal(t, 0.95, output.Matches[0].Score)
		assert.Equal(t, "fox", index.lastText)
		assert.Equal(t, 3, index.lastK)
		assert.Equal(t, "animals", index.lastNamespace)
	})

	t.Run("returns error on query failure", func(t *testing.T) {
		server, err := NewServer(&Ports{Index: &mockIndexService{err: domain.ErrIndexNotFound}})
		require.NoError(t, err)

		_, _, err = server.handleQuery(ctx, nil, QueryInput{Text: "fox"})
		assert.ErrorIs(t, err, domain.ErrIndexNotFound)
	})
}

func TestServer_handleNamespaces(t *testing.T) {
	index := &mockIndexService{namespaces: []domain.NamespaceStats{
		{Name: "default", RecordCount: 4},
		{Name: "docs", RecordCount: 10},
	}}
	server, err := NewServer(&Ports{Index: index})
	require.NoError(t, err)

	_, output, err := server.handleNamespaces(context.Background(), nil, NamespacesInput{})

	require.NoError(t, err)
	assert.Equal(t, []NamespaceOutput{{Name: "default", Records: 4}, {Name: "docs", Records: 10}}, output.Namespaces)
}

func TestServer_handleChat(t *testing.T) {
	ctx := context.Background()

	t.Run("continues a conversation by session id", func(t *testing.T) {
		server, err := NewServer(&Ports{Index: &mockIndexService{}, Chat: &mockChatService{}})
		require.NoError(t, err)

		_, first, err := server.handleChat(ctx, nil, ChatInput{Message: "hello", Namespace: "docs"})
		require.NoError(t, err)
		require.NotEmpty(t, first.SessionID)
		assert.Equal(t, "echo: hello", first.Answer)
		assert.Empty(t, first.Error)
		require.Len(t, first.Sources, 1)
		assert.Equal(t, "docs", first.Sources[0].Namespace)

		_, second, err := server.handleChat(ctx, nil, ChatInput{SessionID: first.SessionID, Message: "again"})
		require.NoError(t, err)
		assert.Equal(t, first.SessionID, second.SessionID)

		sess, ok := server.lookupSession(first.SessionID)
		require.True(t, ok)
		assert.Equal(t, 4, sess.Len())
	})

	t.Run("failed turn is reported in the output", func(t *testing.T) {
		server, err := NewServer(&Ports{Index: &mockIndexService{}, Chat: &mockChatService{fail: true}})
		require.NoError(t, err)

		_, output, err := server.handleChat(ctx, nil, ChatInput{Message: "hello"})
		require.NoError(t, err)
		assert.NotEmpty(t, output.SessionID)
		assert.NotEmpty(t, output.Answer)
		assert.Contains(t, output.Error, domain.ErrLLMUnavailable.Error())
	})

	t.Run("chat disabled", func(t *testing.T) {
		server, err := NewServer(&Ports{Index: &mockIndexService{}})
		require.NoError(t, err)

		_, _, err = server.handleChat(ctx, nil, ChatInput{Message: "hello"})
		assert.ErrorIs(t, err, ErrChatDisabled)
	})
}

func TestServer_handleReset(t *testing.T) {
	ctx := context.Background()
	chat := &mockChatService{}
	server, err := NewServer(&Ports{Index: &mockIndexService{}, Chat: chat})
	require.NoError(t, err)

	_, out, err := server.handleChat(ctx, nil, ChatInput{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	require.Equal(t, "s1", out.SessionID)

	_, reset, err := server.handleReset(ctx, nil, ResetInput{SessionID: "s1"})
	require.NoError(t, err)
	assert.True(t, reset.Reset)
	assert.Equal(t, 1, chat.resets)

	sess, ok := server.lookupSession("s1")
	require.True(t, ok)
	assert.Zero(t, sess.Len())

	_, unknown, err := server.handleReset(ctx, nil, ResetInput{SessionID: "nope"})
	require.NoError(t, err)
	assert.False(t, unknown.Reset)
}

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("reports loaded and skipped files", func(t *testing.T) {
		ingest := &mockIngestService{report: &domain.IngestReport{
			Chunks:   make([]domain.Chunk, 3),
			Loaded:   1,
			Skipped:  1,
			Indexed:  3,
			Failures: []domain.FileFailure{{Path: "x.docx", Err: errors.New("unsupported format")}},
		}}
		server, err := NewServer(&Ports{Index: &mockIndexService{}, Ingest: ingest})
		require.NoError(t, err)

		_, output, err := server.handleIngest(ctx, nil, IngestInput{Paths: []string{"a.txt", "x.docx"}, Namespace: "docs"})

		require.NoError(t, err)
		assert.Equal(t, "docs", output.Namespace)
		assert.Equal(t, 1, output.Loaded)
		assert.Equal(t, 1, output.Skipped)
		assert.Equal(t, 3, output.Chunks)
		assert.Equal(t, 3, output.Indexed)
		require.Len(t, output.Failures, 1)
		assert.Equal(t, "x.docx", output.Failures[0].Path)
	})

	t.Run("no paths", func(t *testing.T) {
		server, err := NewServer(&Ports{Index: &mockIndexService{}, Ingest: &mockIngestService{}})
		require.NoError(t, err)

		_, _, err = server.handleIngest(ctx, nil, IngestInput{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("ingest disabled", func(t *testing.T) {
		server, err := NewServer(&Ports{Index: &mockIndexService{}})
		require.NoError(t, err)

		_, _, err = server.handleIngest(ctx, nil, IngestInput{Paths: []string{"a.txt"}})
		assert.ErrorIs(t, err, ErrIngestDisabled)
	})
}
