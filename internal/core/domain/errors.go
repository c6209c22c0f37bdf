package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// Typed errors below unwrap to one of these so callers can use errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates missing or invalid credentials or parameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupportedFormat indicates a file extension no loader handles.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrDimensionMismatch indicates the index and embedding dimensions disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrBackendUnavailable indicates a backend could not be reached after retrying.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrRetrieval indicates the retrieval step of a chat turn failed.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration indicates the generation step of a chat turn failed.
	ErrGeneration = errors.New("generation failed")

	// ErrLLMUnavailable indicates the LLM service is not configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Backend Errors.
	// Adapters classify transport failures with these.

	// ErrAuthInvalid indicates the backend rejected the credentials.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrIndexNotFound indicates the named vector index does not exist.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexExists indicates CreateIndex found the index already there.
	ErrIndexExists = errors.New("index already exists")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient marks failures worth retrying: timeouts, 5xx, dropped connections.
	ErrTransient = errors.New("transient backend error")
)

// ConfigurationError reports an invalid setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// UnsupportedFormatError reports a file whose extension has no loader.
type UnsupportedFormatError struct {
	Path      string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	ext := e.Extension
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Sprintf("unsupported format %s: %s", ext, e.Path)
}

func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// DimensionMismatchError reports an index whose dimension differs from the
// configured or embedded dimension.
type DimensionMismatchError struct {
	Index    string
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch on index %q: expected %d, got %d", e.Index, e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}

// BackendUnavailableError reports an operation that kept failing after retries.
type BackendUnavailableError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend unavailable: %s failed after %d attempt(s): %v", e.Operation, e.Attempts, e.Err)
}

func (e *BackendUnavailableError) Unwrap() []error {
	return []error{ErrBackendUnavailable, e.Err}
}
