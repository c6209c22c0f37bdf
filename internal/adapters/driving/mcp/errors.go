// Package mcp provides an MCP (Model Context Protocol) server adapter for ragchat.
// It lets AI assistants query the index and hold retrieval-augmented
// conversations over it.
package mcp

import "errors"

// ErrMissingIndexService is returned when the index service is not provided.
var ErrMissingIndexService = errors.New("mcp: index service is required")

// ErrChatDisabled is returned by chat tools when no chat service is configured.
var ErrChatDisabled = errors.New("mcp: chat is not configured")

// ErrIngestDisabled is returned by the ingest tool when no ingest service is configured.
var ErrIngestDisabled = errors.New("mcp: ingestion is not configured")
