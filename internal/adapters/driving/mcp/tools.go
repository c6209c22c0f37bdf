package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Text      string `json:"text" jsonschema:"the text to find similar passages for"`
	Namespace string `json:"namespace,omitempty" jsonschema:"namespace to search (default: configured namespace)"`
	K         int    `json:"k,omitempty" jsonschema:"number of passages to return (default: configured k)"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Matches []MatchOutput `json:"matches"`
	Count   int           `json:"count"`
}

// MatchOutput is one retrieved passage.
type MatchOutput struct {
	ID            string  `json:"id"`
	Score         float64 `json:"score"`
	Text          string  `json:"text"`
	SourceID      string  `json:"source_id"`
	SequenceIndex int     `json:"sequence_index"`
	Namespace     string  `json:"namespace"`
}

// ChatInput is the input schema for the chat tool.
type ChatInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"conversation to continue; omit to start a new one"`
	Namespace string `json:"namespace,omitempty" jsonschema:"namespace to retrieve from; switches an existing session"`
	Message   string `json:"message" jsonschema:"the user's question"`
}

// ChatOutput is the output schema for the chat tool.
type ChatOutput struct {
	SessionID string        `json:"session_id"`
	Answer    string        `json:"answer"`
	Sources   []MatchOutput `json:"sources,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ResetInput is the input schema for the reset tool.
type ResetInput struct {
	SessionID string `json:"session_id" jsonschema:"conversation to clear"`
}

// ResetOutput is the output schema for the reset tool.
type ResetOutput struct {
	SessionID string `json:"session_id"`
	Reset     bool   `json:"reset"`
}

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	Paths     []string `json:"paths" jsonschema:"files to load, split and index"`
	Namespace string   `json:"namespace,omitempty" jsonschema:"namespace to write into (default: configured namespace)"`
}

// IngestOutput is the output schema for the ingest tool.
type IngestOutput struct {
	Namespace string          `json:"namespace"`
	Loaded    int             `json:"loaded"`
	Skipped   int             `json:"skipped"`
	Chunks    int             `json:"chunks"`
	Indexed   int             `json:"indexed"`
	Failures  []FailureOutput `json:"failures,omitempty"`
}

// FailureOutput explains a skipped file.
type FailureOutput struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// NamespacesInput is the (empty) input schema for the namespaces tool.
type NamespacesInput struct{}

// NamespacesOutput is the output schema for the namespaces tool.
type NamespacesOutput struct {
	Namespaces []NamespaceOutput `json:"namespaces"`
}

// NamespaceOutput describes one namespace.
type NamespaceOutput struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Find indexed passages most similar to a text",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "namespaces",
		Description: "List the namespaces of the index and their record counts",
	}, s.handleNamespaces)

	if s.ports.Chat != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "chat",
			Description: "Ask a question answered from the indexed documents, keeping conversation history per session",
		}, s.handleChat)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "reset",
			Description: "Clear the history of a chat session",
		}, s.handleReset)
	}

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest",
			Description: "Load .pdf, .txt, .csv and .md files into the index",
		}, s.handleIngest)
	}
}

func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	matches, err := s.ports.Index.Query(ctx, input.Text, input.K, input.Namespace)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	return nil, QueryOutput{
		Matches: toMatchOutputs(matches),
		Count:   len(matches),
	}, nil
}

func (s *Server) handleNamespaces(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ NamespacesInput,
) (*mcp.CallToolResult, NamespacesOutput, error) {
	stats, err := s.ports.Index.Namespaces(ctx)
	if err != nil {
		return nil, NamespacesOutput{}, err
	}

	output := NamespacesOutput{Namespaces: make([]NamespaceOutput, len(stats))}
	for i, ns := range stats {
		output.Namespaces[i] = NamespaceOutput{Name: ns.Name, Records: ns.RecordCount}
	}
	return nil, output, nil
}

// handleChat answers one turn. A failed turn is reported in the output, not
// as a tool error, so the session ID always reaches the client.
func (s *Server) handleChat(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChatInput,
) (*mcp.CallToolResult, ChatOutput, error) {
	if s.ports.Chat == nil {
		return nil, ChatOutput{}, ErrChatDisabled
	}

	sess := s.session(input.SessionID, input.Namespace)
	result := s.ports.Chat.Chat(ctx, sess, input.Message)

	output := ChatOutput{
		SessionID: sess.ID(),
		Answer:    result.Answer,
		Sources:   toMatchOutputs(result.Sources),
	}
	if result.Err != nil {
		output.Error = result.Err.Error()
	}
	return nil, output, nil
}

func (s *Server) handleReset(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ResetInput,
) (*mcp.CallToolResult, ResetOutput, error) {
	if s.ports.Chat == nil {
		return nil, ResetOutput{}, ErrChatDisabled
	}

	sess, ok := s.lookupSession(input.SessionID)
	if !ok {
		return nil, ResetOutput{SessionID: input.SessionID}, nil
	}
	s.ports.Chat.Reset(sess)
	return nil, ResetOutput{SessionID: input.SessionID, Reset: true}, nil
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if s.ports.Ingest == nil {
		return nil, IngestOutput{}, ErrIngestDisabled
	}
	if len(input.Paths) == 0 {
		return nil, IngestOutput{}, fmt.Errorf("%w: no paths given", domain.ErrInvalidInput)
	}

	report, err := s.ports.Ingest.IngestInto(ctx, input.Paths, input.Namespace)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	output := IngestOutput{
		Namespace: report.Namespace,
		Loaded:    report.Loaded,
		Skipped:   report.Skipped,
		Chunks:    len(report.Chunks),
		Indexed:   report.Indexed,
	}
	for _, f := range report.Failures {
		output.Failures = append(output.Failures, FailureOutput{Path: f.Path, Error: f.Err.Error()})
	}
	return nil, output, nil
}

func toMatchOutputs(matches []domain.Match) []MatchOutput {
	out := make([]MatchOutput, len(matches))
	for i := range matches {
		out[i] = MatchOutput{
			ID:            matches[i].ID,
			Score:         matches[i].Score,
			Text:          matches[i].Text,
			SourceID:      matches[i].Metadata.SourceID,
			SequenceIndex: matches[i].Metadata.SequenceIndex,
			Namespace:     matches[i].Metadata.Namespace,
		}
	}
	return out
}
