package mcp

import (
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// Index answers queries and lists namespaces.
	Index driving.IndexService

	// Chat holds conversations. Optional; chat tools fail without it.
	Chat driving.ChatService

	// Ingest loads files into the index. Optional.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Index == nil {
		return ErrMissingIndexService
	}
	return nil
}
