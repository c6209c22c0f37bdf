package mcp

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	matches    []domain.Match
	namespaces []domain.NamespaceStats
	err        error

	lastText      string
	lastK         int
	lastNamespace string
}

func (m *mockIndexService) Initialize(_ context.Context) error {
	return m.err
}

func (m *mockIndexService) Upsert(_ context.Context, chunks []domain.Chunk, _ string) (int, error) {
	return len(chunks), m.err
}

func (m *mockIndexService) Query(_ context.Context, text string, k int, namespace string) ([]domain.Match, error) {
	m.lastText, m.lastK, m.lastNamespace = text, k, namespace
	return m.matches, m.err
}

func (m *mockIndexService) Describe(_ context.Context) (domain.IndexDescription, error) {
	return domain.IndexDescription{Name: "ragchat", Dimension: 3, Metric: domain.MetricCosine}, m.err
}

func (m *mockIndexService) Namespaces(_ context.Context) ([]domain.NamespaceStats, error) {
	return m.namespaces, m.err
}

// mockChatService echoes questions and records them in the session.
type mockChatService struct {
	fail   bool
	resets int
}

func (m *mockChatService) NewSession(namespace string) *domain.Session {
	if namespace == "" {
		namespace = "configured"
	}
	return domain.NewSession(uuid.NewString(), namespace)
}

func (m *mockChatService) Chat(_ context.Context, session *domain.Session, query string) domain.ChatResult {
	if m.fail {
		return domain.ChatResult{
			Answer: "I could not answer that.",
			Err:    errors.Join(domain.ErrGeneration, domain.ErrLLMUnavailable),
		}
	}
	answer := "echo: " + query
	sources := []domain.Match{{ID: "r1", Score: 0.9, Text: "passage", Metadata: domain.RecordMetadata{
		SourceID: "doc.txt", Namespace: session.Namespace(),
	}}}
	session.Append(
		domain.Turn{Role: domain.RoleUser, Content: query},
		domain.Turn{Role: domain.RoleAssistant, Content: answer, Sources: sources},
	)
	return domain.ChatResult{Answer: answer, Sources: sources}
}

func (m *mockChatService) Reset(session *domain.Session) {
	m.resets++
	session.Reset()
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	report *domain.IngestReport
	err    error
}

func (m *mockIngestService) Load(_ context.Context, _ string) (*domain.Document, error) {
	return nil, m.err
}

func (m *mockIngestService) Ingest(_ context.Context, _ []string) (*domain.IngestReport, error) {
	return m.report, m.err
}

func (m *mockIngestService) IngestInto(_ context.Context, _ []string, namespace string) (*domain.IngestReport, error) {
	if m.report != nil {
		m.report.Namespace = namespace
	}
	return m.report, m.err
}
