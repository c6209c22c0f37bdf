// Package sqlite provides a persistent implementation of driven.VectorBackend.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Vectors are stored as little-endian
// float32 blobs and ranked in Go, so queries scan the whole namespace. That is
// fine for a personal document collection and keeps the store dependency-free.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.ragchat/data/vectors.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
