package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrConfiguration", ErrConfiguration},
		{"ErrUnsupportedFormat", ErrUnsupportedFormat},
		{"ErrDimensionMismatch", ErrDimensionMismatch},
		{"ErrBackendUnavailable", ErrBackendUnavailable},
		{"ErrRetrieval", ErrRetrieval},
		{"ErrGeneration", ErrGeneration},
		{"ErrAuthInvalid", ErrAuthInvalid},
		{"ErrIndexNotFound", ErrIndexNotFound},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrTransient", ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestUnsupportedFormatError(t *testing.T) {
	err := error(&UnsupportedFormatError{Path: "notes.docx", Extension: ".docx"})

	assert.Equal(t, "unsupported format .docx: notes.docx", err.Error())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.NotErrorIs(t, err, ErrDimensionMismatch)

	noExt := &UnsupportedFormatError{Path: "Makefile"}
	assert.Contains(t, noExt.Error(), "(none)")
}

func TestDimensionMismatchError(t *testing.T) {
	err := fmt.Errorf("initialize: %w", &DimensionMismatchError{Index: "docs", Expected: 3072, Actual: 1536})

	assert.ErrorIs(t, err, ErrDimensionMismatch)
	var dimErr *DimensionMismatchError
	assert.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 1536, dimErr.Actual)
	assert.Contains(t, err.Error(), `"docs"`)
}

func TestBackendUnavailableError(t *testing.T) {
	cause := fmt.Errorf("%w: connection reset", ErrTransient)
	err := &BackendUnavailableError{Operation: "query", Attempts: 3, Err: cause}

	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Contains(t, err.Error(), "query failed after 3 attempt(s)")
}

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Field: "chunking.overlap", Reason: "too large"}

	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "configuration error: chunking.overlap: too large", err.Error())
}
