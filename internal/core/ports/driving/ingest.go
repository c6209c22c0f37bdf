package driving

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// IngestService loads files and splits them into chunks.
type IngestService interface {
	// Load reads a single file through the loader registered for its extension.
	Load(ctx context.Context, path string) (*domain.Document, error)

	// Ingest loads and splits each path independently. A file that fails to
	// load is recorded in the report and skipped; the error return is reserved
	// for failures that stop the whole batch, such as cancellation.
	Ingest(ctx context.Context, paths []string) (*domain.IngestReport, error)

	// IngestInto ingests paths and upserts the resulting chunks into namespace.
	IngestInto(ctx context.Context, paths []string, namespace string) (*domain.IngestReport, error)
}
