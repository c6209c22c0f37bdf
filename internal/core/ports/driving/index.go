package driving

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// IndexService manages the vector index.
type IndexService interface {
	// Initialize creates the index if absent or verifies its dimension if present.
	Initialize(ctx context.Context) error

	// Upsert embeds chunks and writes them into namespace. Returns the number written.
	Upsert(ctx context.Context, chunks []domain.Chunk, namespace string) (int, error)

	// Query returns the k best matches for text within namespace.
	Query(ctx context.Context, text string, k int, namespace string) ([]domain.Match, error)

	// Describe returns the name, dimension and metric of the index.
	Describe(ctx context.Context) (domain.IndexDescription, error)

	// Namespaces lists the namespaces holding records.
	Namespaces(ctx context.Context) ([]domain.NamespaceStats, error)
}
