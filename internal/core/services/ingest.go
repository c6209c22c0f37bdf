package services

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService turns files into chunks and, optionally, indexes them.
type IngestService struct {
	registry  driven.LoaderRegistry
	splitter  driven.TextSplitter
	index     driving.IndexService
	namespace string
}

// NewIngestService creates a new ingest service.
// The index parameter is optional (can be nil); without it only Load and
// Ingest are available.
func NewIngestService(
	registry driven.LoaderRegistry,
	splitter driven.TextSplitter,
	index driving.IndexService,
	defaultNamespace string,
) *IngestService {
	if defaultNamespace == "" {
		defaultNamespace = domain.DefaultNamespace
	}
	return &IngestService{
		registry:  registry,
		splitter:  splitter,
		index:     index,
		namespace: defaultNamespace,
	}
}

// Load reads a single file through the loader for its extension.
// The document's SourceID is the absolute, cleaned path, so one file keeps
// one identity however it was named on the command line.
func (s *IngestService) Load(ctx context.Context, path string) (*domain.Document, error) {
	path, err := sourcePath(path)
	if err != nil {
		return nil, err
	}
	loader, err := s.registry.Lookup(path)
	if err != nil {
		return nil, err
	}
	doc, err := loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return doc, nil
}

// Ingest loads and splits every path. Files that fail to load are logged,
// recorded in the report and skipped.
func (s *IngestService) Ingest(ctx context.Context, paths []string) (*domain.IngestReport, error) {
	logger.Section("Ingest")
	logger.Debug("Paths: %d, chunk size: %d, overlap: %d", len(paths), s.splitter.ChunkSize(), s.splitter.Overlap())

	report := &domain.IngestReport{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		doc, err := s.Load(ctx, path)
		if err != nil {
			logger.Warn("Skipping %s: %v", path, err)
			report.Skipped++
			report.Failures = append(report.Failures, domain.FileFailure{Path: path, Err: err})
			continue
		}

		chunks := s.chunk(doc)
		logger.Debug("%s: %d characters, %d chunks", path, len([]rune(doc.Content)), len(chunks))
		report.Chunks = append(report.Chunks, chunks...)
		report.Loaded++
	}

	logger.Info("Loaded %d file(s), skipped %d, produced %d chunk(s)",
		report.Loaded, report.Skipped, len(report.Chunks))
	return report, nil
}

// IngestInto ingests paths and upserts the chunks into namespace.
// An empty namespace means the configured default.
func (s *IngestService) IngestInto(
	ctx context.Context, paths []string, namespace string,
) (*domain.IngestReport, error) {
	if s.index == nil {
		return nil, &domain.ConfigurationError{Field: "vector.backend", Reason: "no index configured for ingestion"}
	}
	if namespace == "" {
		namespace = s.namespace
	}

	report, err := s.Ingest(ctx, paths)
	if err != nil {
		return report, err
	}
	report.Namespace = namespace

	n, err := s.index.Upsert(ctx, report.Chunks, namespace)
	report.Indexed = n
	if err != nil {
		return report, fmt.Errorf("index chunks: %w", err)
	}
	return report, nil
}

func (s *IngestService) chunk(doc *domain.Document) []domain.Chunk {
	texts := s.splitter.Split(doc.Content)
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		metadata := make(map[string]any, len(doc.Metadata)+1)
		maps.Copy(metadata, doc.Metadata)
		if doc.Title != "" {
			metadata["title"] = doc.Title
		}
		chunks[i] = domain.Chunk{
			Text:          text,
			SourceID:      doc.SourceID,
			SequenceIndex: i,
			Format:        doc.Format,
			Metadata:      metadata,
		}
	}
	return chunks
}

func sourcePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %w", domain.ErrInvalidInput, path, err)
	}
	return filepath.Clean(abs), nil
}
