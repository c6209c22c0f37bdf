package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/similarity"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorBackend = (*VectorStore)(nil)

type entry struct {
	record domain.IndexRecord
	seq    int64
}

type vectorIndex struct {
	dimension  int
	metric     domain.Metric
	namespaces map[string]map[string]*entry
}

// VectorStore is an in-memory implementation of driven.VectorBackend.
// Queries scan every record of the namespace.
type VectorStore struct {
	mu      sync.RWMutex
	indexes map[string]*vectorIndex
	seq     int64
}

// NewVectorStore creates an empty in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		indexes: make(map[string]*vectorIndex),
	}
}

// CreateIndex creates an empty index.
func (s *VectorStore) CreateIndex(_ context.Context, name string, dimension int, metric domain.Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	if !metric.IsValid() {
		return fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidInput, metric)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; ok {
		return fmt.Errorf("create index %q: %w", name, domain.ErrIndexExists)
	}
	s.indexes[name] = &vectorIndex{
		dimension:  dimension,
		metric:     metric,
		namespaces: make(map[string]map[string]*entry),
	}
	return nil
}

// ListIndexes returns index names in lexical order.
func (s *VectorStore) ListIndexes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DescribeIndex returns the dimension and metric of an index.
func (s *VectorStore) DescribeIndex(_ context.Context, name string) (domain.IndexDescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[name]
	if !ok {
		return domain.IndexDescription{}, fmt.Errorf("describe %q: %w", name, domain.ErrIndexNotFound)
	}
	return domain.IndexDescription{Name: name, Dimension: idx.dimension, Metric: idx.metric}, nil
}

// Upsert writes records into a namespace. An existing ID keeps its original
// insertion position so ranking ties stay stable across re-ingestion.
func (s *VectorStore) Upsert(_ context.Context, index, namespace string, records []domain.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[index]
	if !ok {
		return fmt.Errorf("upsert %q: %w", index, domain.ErrIndexNotFound)
	}
	for _, r := range records {
		if len(r.Vector) != idx.dimension {
			return &domain.DimensionMismatchError{Index: index, Expected: idx.dimension, Actual: len(r.Vector)}
		}
	}

	ns, ok := idx.namespaces[namespace]
	if !ok {
		ns = make(map[string]*entry)
		idx.namespaces[namespace] = ns
	}
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		r.Metadata.Namespace = namespace
		r.Metadata.Attributes = maps.Clone(r.Metadata.Attributes)
		if e, ok := ns[r.ID]; ok {
			e.record = r
			continue
		}
		s.seq++
		ns[r.ID] = &entry{record: r, seq: s.seq}
	}
	return nil
}

// Query ranks the records of namespace against vector.
func (s *VectorStore) Query(
	_ context.Context, index, namespace string, vector []float32, k int,
) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[index]
	if !ok {
		return nil, fmt.Errorf("query %q: %w", index, domain.ErrIndexNotFound)
	}
	if len(vector) != idx.dimension {
		return nil, &domain.DimensionMismatchError{Index: index, Expected: idx.dimension, Actual: len(vector)}
	}
	if k <= 0 {
		return []domain.Match{}, nil
	}

	type scored struct {
		e     *entry
		score float64
	}
	ns := idx.namespaces[namespace]
	hits := make([]scored, 0, len(ns))
	for _, e := range ns {
		hits = append(hits, scored{e: e, score: similarity.Score(idx.metric, vector, e.record.Vector)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].e.seq < hits[j].e.seq
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	matches := make([]domain.Match, len(hits))
	for i, h := range hits {
		meta := h.e.record.Metadata
		meta.Attributes = maps.Clone(meta.Attributes)
		matches[i] = domain.Match{
			ID:       h.e.record.ID,
			Score:    h.score,
			Text:     meta.Text,
			Metadata: meta,
		}
	}
	return matches, nil
}

// Namespaces lists non-empty namespaces in lexical order.
func (s *VectorStore) Namespaces(_ context.Context, index string) ([]domain.NamespaceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[index]
	if !ok {
		return nil, fmt.Errorf("namespaces %q: %w", index, domain.ErrIndexNotFound)
	}
	stats := make([]domain.NamespaceStats, 0, len(idx.namespaces))
	for name, records := range idx.namespaces {
		if len(records) > 0 {
			stats = append(stats, domain.NamespaceStats{Name: name, RecordCount: len(records)})
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats, nil
}

// Close is a no-op.
func (s *VectorStore) Close() error {
	return nil
}
