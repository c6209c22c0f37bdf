package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for ragchat resources.
	uriScheme = "ragchat://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "namespaces",
		Name:        "namespaces",
		Description: "Namespaces of the vector index with record counts",
		MIMEType:    "application/json",
	}, s.handleNamespacesResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sessions",
		Name:        "sessions",
		Description: "IDs of the chat sessions held by this server",
		MIMEType:    "application/json",
	}, s.handleSessionsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sessions/{sessionId}",
		Name:        "session-transcript",
		Description: "Transcript of a chat session",
		MIMEType:    "text/markdown",
	}, s.handleSessionResource)
}

func (s *Server) handleNamespacesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats, err := s.ports.Index.Namespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}

	infos := make([]NamespaceOutput, len(stats))
	for i, ns := range stats {
		infos[i] = NamespaceOutput{Name: ns.Name, Records: ns.RecordCount}
	}
	return jsonResult(req.Params.URI, infos)
}

func (s *Server) handleSessionsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResult(req.Params.URI, s.sessionIDs())
}

func (s *Server) handleSessionResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractSessionID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	sess, ok := s.lookupSession(id)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\nNamespace: %s\n", sess.ID(), sess.Namespace())
	for _, turn := range sess.Turns() {
		fmt.Fprintf(&b, "\n**%s:** %s\n", turn.Role, turn.Content)
		for _, src := range turn.Sources {
			fmt.Fprintf(&b, "- %s #%d (%.3f)\n", src.Metadata.SourceID, src.Metadata.SequenceIndex, src.Score)
		}
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     b.String(),
		}},
	}, nil
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSessionID extracts the ID from a URI like ragchat://sessions/{sessionId}.
func extractSessionID(uri string) string {
	const prefix = uriScheme + "sessions/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	return strings.TrimPrefix(uri, prefix)
}
