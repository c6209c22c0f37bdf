package driven

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// VectorBackend stores embedded chunks and answers nearest-neighbour queries.
// All reads and writes are scoped to a namespace of a named index; a query
// must never return records from another namespace.
//
// Implementations classify failures with domain sentinels:
// ErrIndexNotFound for a missing index, ErrAuthInvalid for rejected
// credentials and ErrTransient for failures worth retrying.
// They must be safe for concurrent use.
type VectorBackend interface {
	// CreateIndex creates an index with a fixed dimension and metric.
	// An index that already exists is reported as domain.ErrIndexExists.
	CreateIndex(ctx context.Context, name string, dimension int, metric domain.Metric) error

	// ListIndexes returns the names of all indexes.
	ListIndexes(ctx context.Context) ([]string, error)

	// DescribeIndex returns the dimension and metric of an existing index.
	DescribeIndex(ctx context.Context, name string) (domain.IndexDescription, error)

	// Upsert inserts or overwrites records by ID. The namespace is created if absent.
	Upsert(ctx context.Context, index, namespace string, records []domain.IndexRecord) error

	// Query returns up to k records of namespace ranked by descending score.
	// Equal scores keep insertion order where the backend can tell.
	Query(ctx context.Context, index, namespace string, vector []float32, k int) ([]domain.Match, error)

	// Namespaces lists the non-empty namespaces of an index.
	Namespaces(ctx context.Context, index string) ([]domain.NamespaceStats, error)

	// Close releases resources.
	Close() error
}

// IndexWaiter is implemented by backends whose indexes become usable some
// time after CreateIndex returns. WaitReady blocks until name accepts reads
// and writes, or ctx is done.
type IndexWaiter interface {
	WaitReady(ctx context.Context, name string) error
}
