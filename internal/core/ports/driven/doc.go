// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Loader: Reads one file format into a Document
//   - LoaderRegistry: Selects a loader by file extension
//   - TextSplitter: Splits document text into overlapping chunks
//   - EmbeddingService: Turns text into fixed-length vectors
//   - VectorBackend: Stores and searches vectors per namespace
//   - LLMService: Generates answers from a conversation
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, loader, or chunker package
package driven
