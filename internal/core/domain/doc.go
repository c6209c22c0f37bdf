// Package domain defines the core business entities for ragchat.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: Text loaded from a single file, tagged with its format
//   - Chunk: A bounded span of a document, the unit of embedding and retrieval
//   - IndexRecord: An embedded chunk stored in a namespace of the vector index
//   - Session: One conversation, its turn history and retrieval namespace
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
