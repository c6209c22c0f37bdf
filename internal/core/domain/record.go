package domain

// DefaultNamespace is used when a caller does not name a namespace.
const DefaultNamespace = "default"

// Metric is the similarity function an index ranks with.
type Metric string

// Supported similarity metrics.
const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dotproduct"
	MetricEuclidean  Metric = "euclidean"
)

// IsValid returns true if the metric is recognised.
func (m Metric) IsValid() bool {
	switch m {
	case MetricCosine, MetricDotProduct, MetricEuclidean:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m Metric) String() string {
	return string(m)
}

// RecordMetadata is stored alongside every vector.
type RecordMetadata struct {
	SourceID      string
	SequenceIndex int
	Namespace     string
	Format        Format

	// Text is the chunk text, kept so matches can be shown without a second store.
	Text string

	// Attributes are the loader metadata of the parent document, such as the
	// title or page count, rendered as strings.
	Attributes map[string]string
}

// IndexRecord is one embedded chunk.
// ID is derived from the chunk identity, so writing the same chunk twice
// overwrites the earlier record.
type IndexRecord struct {
	ID       string
	Vector   []float32
	Metadata RecordMetadata
}

// Match is a ranked query hit.
type Match struct {
	ID       string
	Score    float64
	Text     string
	Metadata RecordMetadata
}

// IndexDescription reports the shape of an existing index.
type IndexDescription struct {
	Name      string
	Dimension int
	Metric    Metric
}

// NamespaceStats reports one namespace of an index.
type NamespaceStats struct {
	Name        string
	RecordCount int
}
