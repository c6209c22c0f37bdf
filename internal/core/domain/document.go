package domain

import (
	"path/filepath"
	"strings"
)

// Format identifies the file format a document was loaded from.
type Format string

// Supported document formats.
const (
	FormatPDF      Format = "pdf"
	FormatText     Format = "txt"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// IsValid returns true if the format is recognised.
func (f Format) IsValid() bool {
	switch f {
	case FormatPDF, FormatText, FormatCSV, FormatMarkdown:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (f Format) String() string {
	return string(f)
}

// Extension returns the lower-cased extension of path including the leading dot.
func Extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Document is the text of one loaded file.
// It is immutable once a loader returns it.
type Document struct {
	// ID is a stable identifier derived from the source path.
	ID string

	// SourceID identifies where the text came from (usually the file path).
	SourceID string

	// Title is the human-readable title, taken from the content or file name.
	Title string

	// Format is the format tag of the source file.
	Format Format

	// Content is the full extracted text before chunking.
	Content string

	// Metadata contains loader-specific key-value pairs (page count, columns, ...).
	Metadata map[string]any
}

// Chunk is a substring of a Document and the unit of embedding and retrieval.
type Chunk struct {
	// Text is the chunk content.
	Text string

	// SourceID is the SourceID of the parent document.
	SourceID string

	// SequenceIndex is the 0-based position of the chunk within its document.
	SequenceIndex int

	// Format is the format of the parent document.
	Format Format

	// Metadata is copied from the parent document.
	Metadata map[string]any
}

// FileFailure records why a file was skipped during ingestion.
type FileFailure struct {
	Path string
	Err  error
}

// IngestReport summarises a batch ingestion.
// Partial success is a normal outcome: Loaded and Skipped always add up to the
// number of paths requested.
type IngestReport struct {
	// Chunks holds every chunk produced, in path order then sequence order.
	Chunks []Chunk

	// Loaded is the number of files that were loaded and split.
	Loaded int

	// Skipped is the number of files that failed to load.
	Skipped int

	// Failures explains each skipped file.
	Failures []FileFailure

	// Namespace is where the chunks were indexed, if they were.
	Namespace string

	// Indexed is the number of records written to the vector index.
	Indexed int
}
