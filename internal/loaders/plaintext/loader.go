// Package plaintext loads .txt files.
package plaintext

import (
	"context"
	"strings"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/loaders"
)

// Ensure Loader implements the interface.
var _ driven.Loader = (*Loader)(nil)

// Loader handles plain text documents.
type Loader struct{}

// New creates a new plain text loader.
func New() *Loader {
	return &Loader{}
}

// Format returns the format tag.
func (l *Loader) Format() domain.Format {
	return domain.FormatText
}

// Extensions returns the extensions this loader handles.
func (l *Loader) Extensions() []string {
	return []string{".txt"}
}

// Load reads the file as-is. Line endings are normalised to "\n".
func (l *Loader) Load(_ context.Context, path string) (*domain.Document, error) {
	text, err := loaders.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return loaders.NewDocument(path, domain.FormatText, "", text), nil
}
