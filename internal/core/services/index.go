package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure IndexManager implements the interface.
var _ driving.IndexService = (*IndexManager)(nil)

// upsertBatchSize is the number of chunks embedded per request.
const upsertBatchSize = 64

// recordNamespace seeds deterministic record IDs.
var recordNamespace = uuid.MustParse("8f2b5c1e-3d4a-5e6f-9a0b-1c2d3e4f5a6b")

// RecordID returns the stable ID of the record for a chunk.
// Re-ingesting the same source overwrites its records instead of duplicating them.
func RecordID(sourceID string, sequenceIndex int) string {
	return uuid.NewSHA1(recordNamespace, []byte(sourceID+"|"+strconv.Itoa(sequenceIndex))).String()
}

// IndexManager owns the vector index: it creates it on first use, embeds
// chunks into it and answers nearest-neighbour queries.
type IndexManager struct {
	backend   driven.VectorBackend
	embedder  driven.EmbeddingService
	name      string
	dimension int
	metric    domain.Metric
	k         int
	namespace string
	batchSize int
	retry     retryPolicy

	mu    sync.Mutex
	ready bool
}

// NewIndexManager creates an index manager for the index named in settings.
// The index dimension comes from the embedding settings, or from the
// embedder when the settings leave it unset.
func NewIndexManager(
	backend driven.VectorBackend,
	embedder driven.EmbeddingService,
	settings domain.Settings,
) (*IndexManager, error) {
	if backend == nil {
		return nil, &domain.ConfigurationError{Field: "vector.backend", Reason: "no vector backend configured"}
	}
	if embedder == nil {
		return nil, fmt.Errorf("index manager: %w", domain.ErrEmbeddingUnavailable)
	}

	dimension := settings.Embedding.Dimensions
	if dimension <= 0 {
		dimension = embedder.Dimensions()
	}
	if dimension <= 0 {
		return nil, &domain.ConfigurationError{Field: "embedding.dimensions", Reason: "must be positive"}
	}
	if d := embedder.Dimensions(); d > 0 && d != dimension {
		return nil, &domain.DimensionMismatchError{Index: settings.Vector.Index, Expected: dimension, Actual: d}
	}

	metric := settings.Vector.Metric
	if metric == "" {
		metric = domain.MetricCosine
	}
	k := settings.Retrieval.K
	if k <= 0 {
		k = domain.DefaultK
	}
	namespace := settings.Retrieval.Namespace
	if namespace == "" {
		namespace = domain.DefaultNamespace
	}
	name := settings.Vector.Index
	if name == "" {
		name = domain.DefaultIndexName
	}

	return &IndexManager{
		backend:   backend,
		embedder:  embedder,
		name:      name,
		dimension: dimension,
		metric:    metric,
		k:         k,
		namespace: namespace,
		batchSize: upsertBatchSize,
		retry:     newRetryPolicy(settings.Retry),
	}, nil
}

// Initialize creates the index if it does not exist, or checks that an
// existing index has the configured dimension. It is safe to call repeatedly.
func (m *IndexManager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ready {
		return nil
	}
	if err := m.ensureIndex(ctx); err != nil {
		return fmt.Errorf("initialize index %q: %w", m.name, err)
	}
	m.ready = true
	return nil
}

// ensureIndex must be called with m.mu held.
func (m *IndexManager) ensureIndex(ctx context.Context) error {
	logger.Section("Index Initialization")

	var names []string
	err := m.retry.do(ctx, "list indexes", func(ctx context.Context) error {
		var err error
		names, err = m.backend.ListIndexes(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if !slices.Contains(names, m.name) {
		logger.Info("Creating index %q (dimension %d, metric %s)", m.name, m.dimension, m.metric)
		err := m.retry.do(ctx, "create index", func(ctx context.Context) error {
			return m.backend.CreateIndex(ctx, m.name, m.dimension, m.metric)
		})
		switch {
		case errors.Is(err, domain.ErrIndexExists):
			// Created by someone else since the listing; check it like any existing index.
			logger.Debug("Index %q was created concurrently", m.name)
		case err != nil:
			return err
		default:
			return m.waitReady(ctx)
		}
	}

	if err := m.waitReady(ctx); err != nil {
		return err
	}
	desc, err := m.describe(ctx)
	if err != nil {
		return err
	}
	if desc.Dimension != m.dimension {
		return &domain.DimensionMismatchError{Index: m.name, Expected: m.dimension, Actual: desc.Dimension}
	}
	logger.Debug("Index %q exists (dimension %d, metric %s)", m.name, desc.Dimension, desc.Metric)
	return nil
}

// waitReady blocks until a backend that provisions indexes asynchronously
// can serve the index. It runs outside the per-call timeout.
func (m *IndexManager) waitReady(ctx context.Context) error {
	waiter, ok := m.backend.(driven.IndexWaiter)
	if !ok {
		return nil
	}
	if err := waiter.WaitReady(ctx, m.name); err != nil {
		return fmt.Errorf("wait for index %q: %w", m.name, err)
	}
	return nil
}

// Upsert embeds chunks and writes them into namespace.
// It returns the number of records written.
func (m *IndexManager) Upsert(ctx context.Context, chunks []domain.Chunk, namespace string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := m.Initialize(ctx); err != nil {
		return 0, err
	}
	namespace = m.resolveNamespace(namespace)

	written := 0
	for start := 0; start < len(chunks); start += m.batchSize {
		end := min(start+m.batchSize, len(chunks))

		records, err := m.embedChunks(ctx, chunks[start:end], namespace)
		if err != nil {
			return written, err
		}

		err = m.withIndex(ctx, "upsert", func(ctx context.Context) error {
			return m.backend.Upsert(ctx, m.name, namespace, records)
		})
		if err != nil {
			return written, fmt.Errorf("upsert into %q/%s: %w", m.name, namespace, err)
		}
		written += len(records)
		logger.Debug("Upserted %d/%d records into %s", written, len(chunks), namespace)
	}
	return written, nil
}

func (m *IndexManager) embedChunks(ctx context.Context, chunks []domain.Chunk, namespace string) ([]domain.IndexRecord, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := m.retry.do(ctx, "embed chunks", func(ctx context.Context) error {
		var err error
		vectors, err = m.embedder.EmbedBatch(ctx, texts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d embeddings for %d texts", len(vectors), len(chunks))
	}

	records := make([]domain.IndexRecord, len(chunks))
	for i, c := range chunks {
		if err := m.checkDimension(vectors[i]); err != nil {
			return nil, err
		}
		records[i] = domain.IndexRecord{
			ID:     RecordID(c.SourceID, c.SequenceIndex),
			Vector: vectors[i],
			Metadata: domain.RecordMetadata{
				SourceID:      c.SourceID,
				SequenceIndex: c.SequenceIndex,
				Namespace:     namespace,
				Format:        c.Format,
				Text:          c.Text,
				Attributes:    attributes(c.Metadata),
			},
		}
	}
	return records, nil
}

func attributes(metadata map[string]any) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(metadata))
	for k, v := range metadata {
		attrs[k] = fmt.Sprint(v)
	}
	return attrs
}

// Query embeds text and returns the k nearest records of namespace.
func (m *IndexManager) Query(ctx context.Context, text string, k int, namespace string) ([]domain.Match, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = m.k
	}
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	namespace = m.resolveNamespace(namespace)

	var vector []float32
	err := m.retry.do(ctx, "embed query", func(ctx context.Context) error {
		var err error
		vector, err = m.embedder.Embed(ctx, text)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := m.checkDimension(vector); err != nil {
		return nil, err
	}

	var matches []domain.Match
	err = m.withIndex(ctx, "query", func(ctx context.Context) error {
		var err error
		matches, err = m.backend.Query(ctx, m.name, namespace, vector, k)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("query %q/%s: %w", m.name, namespace, err)
	}
	logger.Debug("Query returned %d matches from %s", len(matches), namespace)
	return matches, nil
}

// Describe returns the shape of the index, creating it first if needed.
func (m *IndexManager) Describe(ctx context.Context) (domain.IndexDescription, error) {
	if err := m.Initialize(ctx); err != nil {
		return domain.IndexDescription{}, err
	}
	return m.describe(ctx)
}

// Namespaces lists the namespaces that hold records.
func (m *IndexManager) Namespaces(ctx context.Context) ([]domain.NamespaceStats, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}

	var stats []domain.NamespaceStats
	err := m.retry.do(ctx, "list namespaces", func(ctx context.Context) error {
		var err error
		stats, err = m.backend.Namespaces(ctx, m.name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	return stats, nil
}

func (m *IndexManager) describe(ctx context.Context) (domain.IndexDescription, error) {
	var desc domain.IndexDescription
	err := m.retry.do(ctx, "describe index", func(ctx context.Context) error {
		var err error
		desc, err = m.backend.DescribeIndex(ctx, m.name)
		return err
	})
	return desc, err
}

// withIndex runs fn and, if the backend reports the index missing, recreates
// the index and runs fn once more.
func (m *IndexManager) withIndex(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	err := m.retry.do(ctx, operation, fn)
	if !errors.Is(err, domain.ErrIndexNotFound) {
		return err
	}

	logger.Warn("Index %q not found during %s, recreating", m.name, operation)
	m.mu.Lock()
	m.ready = false
	m.mu.Unlock()
	if err := m.Initialize(ctx); err != nil {
		return err
	}
	return m.retry.do(ctx, operation, fn)
}

func (m *IndexManager) checkDimension(vector []float32) error {
	if len(vector) != m.dimension {
		return &domain.DimensionMismatchError{Index: m.name, Expected: m.dimension, Actual: len(vector)}
	}
	return nil
}

func (m *IndexManager) resolveNamespace(namespace string) string {
	if namespace = strings.TrimSpace(namespace); namespace == "" {
		return m.namespace
	}
	return namespace
}
