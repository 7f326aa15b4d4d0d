package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("disk I/O error")

	// When: wrapping with KnowError
	knowErr := New(ErrCodeStorageQuery, "failed to load chunks", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, knowErr)
	assert.Equal(t, originalErr, errors.Unwrap(knowErr))
	assert.True(t, errors.Is(knowErr, originalErr))
}

func TestKnowError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[KNOW_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "storage error",
			code:     ErrCodeStorageOpen,
			message:  "cannot open database",
			expected: "[KNOW_201_STORAGE_OPEN] cannot open database",
		},
		{
			name:     "index error",
			code:     ErrCodeIndexCorrupt,
			message:  "chunk index corrupted",
			expected: "[KNOW_302_INDEX_CORRUPT] chunk index corrupted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestKnowError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeStorageQuery, "item A query failed", nil)
	err2 := New(ErrCodeStorageQuery, "item B query failed", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestKnowError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeStorageQuery, "query failed", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestKnowError_WithDetail_AddsContext(t *testing.T) {
	err := New(ErrCodeStorageQuery, "query failed", nil)

	err = err.WithDetail("item_id", "b0c1d2e3")
	err = err.WithDetail("table", "chunks")

	assert.Equal(t, "b0c1d2e3", err.Details["item_id"])
	assert.Equal(t, "chunks", err.Details["table"])
}

func TestKnowError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(ErrCodeLockHeld, "data directory is locked", nil)

	err = err.WithSuggestion("Stop the other knowmcp instance first")

	assert.Equal(t, "Stop the other knowmcp instance first", err.Suggestion)
}

func TestKnowError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeStorageOpen, CategoryStorage},
		{ErrCodeLockHeld, CategoryStorage},
		{ErrCodeIndexOpen, CategoryIndex},
		{ErrCodeIndexCorrupt, CategoryIndex},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeUnsupportedSource, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeChunkingFailed, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestKnowError_Retryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeStorageBusy, "database is locked", nil)))
	assert.True(t, IsRetryable(New(ErrCodeStorageTx, "transaction aborted", nil)))
	assert.False(t, IsRetryable(New(ErrCodeInvalidInput, "bad input", nil)))
	assert.False(t, IsRetryable(errors.New("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestKnowError_Severity(t *testing.T) {
	// Lock contention aborts startup.
	assert.True(t, IsFatal(New(ErrCodeLockHeld, "locked", nil)))

	// Locally recovered conditions are warnings, not fatal.
	assert.False(t, IsFatal(New(ErrCodeIndexCorrupt, "corrupt", nil)))
	assert.Equal(t, SeverityWarning, New(ErrCodeChunkingFailed, "panic", nil).Severity)
	assert.Equal(t, SeverityWarning, New(ErrCodeVectorFitFailed, "fit", nil).Severity)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWrap_PreservesMessage(t *testing.T) {
	cause := errors.New("unique constraint violated")
	err := Wrap(ErrCodeStorageTx, cause)

	require.NotNil(t, err)
	assert.Equal(t, "unique constraint violated", err.Message)
	assert.Equal(t, cause, err.Cause)
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeSearchFailed, GetCode(New(ErrCodeSearchFailed, "x", nil)))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}
