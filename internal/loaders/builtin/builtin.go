// Package builtin assembles the loader registry with every supported format.
package builtin

import (
	"github.com/custodia-labs/ragchat/internal/loaders"
	"github.com/custodia-labs/ragchat/internal/loaders/csv"
	"github.com/custodia-labs/ragchat/internal/loaders/markdown"
	"github.com/custodia-labs/ragchat/internal/loaders/pdf"
	"github.com/custodia-labs/ragchat/internal/loaders/plaintext"
)

// NewRegistry returns a registry handling .pdf, .txt, .csv, .md and .markdown.
func NewRegistry() *loaders.Registry {
	return loaders.NewRegistry(
		pdf.New(),
		plaintext.New(),
		csv.New(),
		markdown.New(),
	)
}
