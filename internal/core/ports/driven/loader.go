package driven

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// Loader reads one file format into a Document.
type Loader interface {
	// Format returns the format tag of documents this loader produces.
	Format() domain.Format

	// Extensions returns the file extensions handled, lower-case with a leading dot.
	Extensions() []string

	// Load reads the file at path.
	Load(ctx context.Context, path string) (*domain.Document, error)
}

// LoaderRegistry maps file extensions to loaders.
type LoaderRegistry interface {
	// Register adds a loader for all of its extensions, replacing earlier entries.
	Register(loader Loader)

	// Lookup returns the loader for path's extension.
	// It returns a *domain.UnsupportedFormatError when none is registered.
	Lookup(path string) (Loader, error)

	// Extensions returns every registered extension, sorted.
	Extensions() []string
}

// TextSplitter splits text into overlapping chunks.
type TextSplitter interface {
	// Split returns the chunk texts of text in order.
	Split(text string) []string

	// ChunkSize returns the maximum chunk length in characters.
	ChunkSize() int

	// Overlap returns the number of characters shared by adjacent chunks.
	Overlap() int
}
