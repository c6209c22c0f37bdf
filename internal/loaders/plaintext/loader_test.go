package plaintext

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Loader = New()
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, []string{".txt"}, New().Extensions())
	assert.Equal(t, domain.FormatText, New().Format())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fox_story.txt")
	require.NoError(t, os.WriteFile(path, []byte("The quick brown fox.\r\nJumps over the dog.\r\n"), 0600))

	doc, err := New().Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "The quick brown fox.\nJumps over the dog.\n", doc.Content)
	assert.Equal(t, path, doc.SourceID)
	assert.Equal(t, "fox story", doc.Title)
	assert.Equal(t, domain.FormatText, doc.Format)
}

func TestLoad_UnicodeContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unicode.txt")
	require.NoError(t, os.WriteFile(path, []byte("héllo wörld 日本語"), 0600))

	doc, err := New().Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "héllo wörld 日本語", doc.Content)
}

func TestLoad_MissingFile(t *testing.T) {
	doc, err := New().Load(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))

	assert.Error(t, err)
	assert.Nil(t, doc)
}
