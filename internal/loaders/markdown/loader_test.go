package markdown

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func TestExtensions(t *testing.T) {
	l := New()
	assert.Equal(t, []string{".md", ".markdown"}, l.Extensions())
	assert.Equal(t, domain.FormatMarkdown, l.Format())
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"headings", "# Title\n\n## Section\nbody", "Title\n\nSection\nbody"},
		{"links", "see [the docs](https://example.com) now", "see the docs now"},
		{"images keep alt text", "![diagram](img.png)", "diagram"},
		{"bold", "a **strong** word", "a strong word"},
		{"italic", "an *emphasised* word", "an emphasised word"},
		{"snake case untouched", "call my_func_name here", "call my_func_name here"},
		{"inline code", "run `go test` first", "run go test first"},
		{"code fence keeps body", "```go\nfmt.Println(1)\n```", "fmt.Println(1)"},
		{"lists", "- one\n- two\n* three", "one\ntwo\nthree"},
		{"blockquote", "> quoted line", "quoted line"},
		{"horizontal rule", "above\n\n---\n\nbelow", "above\n\nbelow"},
		{"comments", "a<!-- hidden -->b", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Strip(tt.in))
		})
	}
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "Getting Started", extractTitle("intro\n# Getting Started\n## Next"))
	assert.Equal(t, "", extractTitle("## Only H2"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	content := "# User Guide\n\nSome **bold** text and a [link](http://x).\n\n- item one\n- item two\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	doc, err := New().Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "User Guide", doc.Title)
	assert.Equal(t, "User Guide\n\nSome bold text and a link.\n\nitem one\nitem two", doc.Content)
	assert.Equal(t, domain.FormatMarkdown, doc.Format)
}

func TestLoad_TitleFallsBackToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release-notes.markdown")
	require.NoError(t, os.WriteFile(path, []byte("no heading here"), 0600))

	doc, err := New().Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "release notes", doc.Title)
}
