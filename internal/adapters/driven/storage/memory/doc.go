// Package memory provides in-memory implementations of driven ports.
// The vector store backs tests and the "memory" vector backend; the config
// and secret stores exist for tests.
package memory
