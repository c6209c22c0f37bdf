// Package tui provides the interactive chat terminal interface for ragchat.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the TUI.
type Ports struct {
	// Chat answers questions.
	Chat driving.ChatService

	// Index lists namespaces for the /ns command. Optional.
	Index driving.IndexService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Chat == nil {
		return ErrMissingChatService
	}
	return nil
}
