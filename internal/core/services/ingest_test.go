package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragchat/internal/chunker"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/loaders/builtin"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newIngestService(t *testing.T, size, overlap int, index *IndexManager) *IngestService {
	t.Helper()
	splitter, err := chunker.New(chunker.WithChunkSize(size), chunker.WithOverlap(overlap))
	require.NoError(t, err)
	if index == nil {
		return NewIngestService(builtin.NewRegistry(), splitter, nil, "")
	}
	return NewIngestService(builtin.NewRegistry(), splitter, index, "")
}

func TestIngestService_Load(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "fox.txt", "The quick brown fox.")
	svc := newIngestService(t, 1000, 200, nil)

	doc, err := svc.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "The quick brown fox.", doc.Content)
	assert.Equal(t, domain.FormatText, doc.Format)
	assert.Equal(t, path, doc.SourceID)
}

func TestIngestService_Load_Unsupported(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "slides.pptx", "binary")
	svc := newIngestService(t, 1000, 200, nil)

	_, err := svc.Load(context.Background(), path)
	var unsupported *domain.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, ".pptx", unsupported.Extension)
}

func TestIngestService_Ingest_EachFormat(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "a.txt", "Plain text content."),
		writeFile(t, dir, "b.md", "# Title\n\nSome **markdown** content."),
		writeFile(t, dir, "c.csv", "name,age\nalice,30\nbob,40\n"),
	}
	svc := newIngestService(t, 1000, 200, nil)

	report, err := svc.Ingest(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Loaded)
	assert.Zero(t, report.Skipped)

	perSource := map[string]int{}
	for _, c := range report.Chunks {
		perSource[c.SourceID]++
	}
	for _, p := range paths {
		assert.GreaterOrEqual(t, perSource[p], 1, p)
	}
}

func TestIngestService_Ingest_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "Some content worth keeping.")
	unsupported := writeFile(t, dir, "bad.xyz", "ignored")
	missing := filepath.Join(dir, "missing.txt")
	svc := newIngestService(t, 1000, 200, nil)

	report, err := svc.Ingest(context.Background(), []string{good, unsupported, missing})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Loaded)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, unsupported, report.Failures[0].Path)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrUnsupportedFormat)
	assert.Equal(t, missing, report.Failures[1].Path)
	require.Len(t, report.Chunks, 1)
	assert.Equal(t, good, report.Chunks[0].SourceID)
}

func TestIngestService_Ingest_ChunkMetadata(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("Sentence number one is here. ", 20)
	path := writeFile(t, dir, "long.txt", content)
	svc := newIngestService(t, 100, 20, nil)

	report, err := svc.Ingest(context.Background(), []string{path})
	require.NoError(t, err)
	require.Greater(t, len(report.Chunks), 1)

	for i, c := range report.Chunks {
		assert.Equal(t, i, c.SequenceIndex)
		assert.Equal(t, path, c.SourceID)
		assert.Equal(t, domain.FormatText, c.Format)
		assert.LessOrEqual(t, len([]rune(c.Text)), 100)
		assert.Equal(t, "long", c.Metadata["title"])
	}
}

func TestIngestService_Ingest_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.txt", "   \n")
	svc := newIngestService(t, 1000, 200, nil)

	report, err := svc.Ingest(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Loaded)
	assert.Empty(t, report.Chunks)
}

func TestIngestService_Ingest_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "text")
	svc := newIngestService(t, 1000, 200, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Ingest(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngestService_IngestInto(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "fox.txt", "The quick brown fox jumps over the lazy dog.")

	index, err := NewIndexManager(memory.NewVectorStore(), newBagEmbedder(), testSettings())
	require.NoError(t, err)
	svc := newIngestService(t, 1000, 200, index)

	report, err := svc.IngestInto(ctx, []string{path}, "animals")
	require.NoError(t, err)
	assert.Equal(t, "animals", report.Namespace)
	assert.Equal(t, 1, report.Indexed)

	matches, err := index.Query(ctx, "fox", 4, "animals")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, path, matches[0].Metadata.SourceID)
}

func TestIngestService_IngestInto_KeepsLoaderMetadata(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "people.csv", "name,age\nalice,30\nbob,40\n")

	index, err := NewIndexManager(memory.NewVectorStore(), newBagEmbedder(), testSettings())
	require.NoError(t, err)
	svc := newIngestService(t, 1000, 200, index)

	_, err = svc.IngestInto(ctx, []string{path}, "")
	require.NoError(t, err)

	matches, err := index.Query(ctx, "alice", 1, "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	attrs := matches[0].Metadata.Attributes
	assert.Equal(t, "name,age", attrs["columns"])
	assert.Equal(t, "people", attrs["title"])
	assert.Equal(t, "people.csv", attrs["file_name"])
}

func TestIngestService_IngestInto_SamePathSpellingsShareRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	abs := writeFile(t, dir, "a.txt", "alpha beta gamma")
	t.Chdir(dir)

	store := memory.NewVectorStore()
	index, err := NewIndexManager(store, newBagEmbedder(), testSettings())
	require.NoError(t, err)
	svc := newIngestService(t, 1000, 200, index)

	for _, path := range []string{"a.txt", "./sub/../a.txt", abs} {
		_, err := svc.IngestInto(ctx, []string{path}, "ns")
		require.NoError(t, err, path)
	}

	stats, err := index.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.NamespaceStats{{Name: "ns", RecordCount: 1}}, stats)

	matches, err := index.Query(ctx, "alpha", 4, "ns")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, abs, matches[0].Metadata.SourceID)
}

func TestIngestService_Load_RelativePath(t *testing.T) {
	dir := t.TempDir()
	abs := writeFile(t, dir, "fox.txt", "The quick brown fox.")
	t.Chdir(dir)
	svc := newIngestService(t, 1000, 200, nil)

	doc, err := svc.Load(context.Background(), "fox.txt")
	require.NoError(t, err)
	assert.Equal(t, abs, doc.SourceID)
}

func TestIngestService_IngestInto_DefaultNamespace(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "alpha")

	index, err := NewIndexManager(memory.NewVectorStore(), newBagEmbedder(), testSettings())
	require.NoError(t, err)
	svc := newIngestService(t, 1000, 200, index)

	report, err := svc.IngestInto(context.Background(), []string{path}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultNamespace, report.Namespace)
}

func TestIngestService_IngestInto_NoIndex(t *testing.T) {
	svc := newIngestService(t, 1000, 200, nil)

	_, err := svc.IngestInto(context.Background(), []string{"a.txt"}, "")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
