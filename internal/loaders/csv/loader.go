// Package csv loads .csv files, one text block per row.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/loaders"
)

// Ensure Loader implements the interface.
var _ driven.Loader = (*Loader)(nil)

// Loader handles comma separated files.
// The first row is the header. Every following row becomes a block of
// "column: value" lines and blocks are separated by a blank line, so the
// splitter keeps rows together where it can.
type Loader struct {
	comma rune
}

// Option configures the loader.
type Option func(*Loader)

// WithComma sets the field delimiter (default ',').
func WithComma(r rune) Option {
	return func(l *Loader) {
		l.comma = r
	}
}

// New creates a new CSV loader.
func New(opts ...Option) *Loader {
	l := &Loader{comma: ','}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Format returns the format tag.
func (l *Loader) Format() domain.Format {
	return domain.FormatCSV
}

// Extensions returns the extensions this loader handles.
func (l *Loader) Extensions() []string {
	return []string{".csv"}
}

// Load parses the file and renders its rows as text.
func (l *Loader) Load(_ context.Context, path string) (*domain.Document, error) {
	raw, err := loaders.ReadFile(path)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(raw))
	r.Comma = l.comma
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return loaders.NewDocument(path, domain.FormatCSV, "", ""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var blocks []string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if block := renderRow(header, record); block != "" {
			blocks = append(blocks, block)
		}
	}

	doc := loaders.NewDocument(path, domain.FormatCSV, "", strings.Join(blocks, "\n\n"))
	doc.Metadata["columns"] = strings.Join(header, ",")
	doc.Metadata["rows"] = len(blocks)
	return doc, nil
}

// renderRow formats one record as "column: value" lines, skipping empty values.
// Fields beyond the header are labelled by position.
func renderRow(header, record []string) string {
	var b strings.Builder
	for i, value := range record {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		name := fmt.Sprintf("column %d", i+1)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			name = strings.TrimSpace(header[i])
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
	}
	return b.String()
}
