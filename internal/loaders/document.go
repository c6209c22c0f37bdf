package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// documentNamespace seeds document IDs so the same path always gets the same ID.
var documentNamespace = uuid.MustParse("5b0c6a43-3f4e-4d8e-9a52-2f1e8c3b7d10")

// NewDocument builds a document for path with a path-derived ID.
func NewDocument(path string, format domain.Format, title, content string) *domain.Document {
	if title == "" {
		title = TitleFromPath(path)
	}
	return &domain.Document{
		ID:       uuid.NewSHA1(documentNamespace, []byte(path)).String(),
		SourceID: path,
		Title:    title,
		Format:   format,
		Content:  content,
		Metadata: map[string]any{
			"format":    format.String(),
			"file_name": filepath.Base(path),
		},
	}
}

// ReadFile reads path as text. Invalid UTF-8 sequences are replaced.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	return strings.TrimPrefix(text, "\uFEFF"), nil
}

// TitleFromPath derives a readable title from a file name.
func TitleFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return name
}
