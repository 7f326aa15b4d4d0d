package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_BasicError(t *testing.T) {
	err := New(ErrCodeStorageOpen, "cannot open 'knowledge.db'", nil)

	result := FormatForUser(err)

	assert.Contains(t, result, "cannot open 'knowledge.db'")
	assert.Contains(t, result, "[KNOW_201_STORAGE_OPEN]")
}

func TestFormatForUser_WithSuggestion(t *testing.T) {
	err := New(ErrCodeLockHeld, "data directory is locked by another instance", nil).
		WithSuggestion("Stop the running knowmcp serve process")

	result := FormatForUser(err)

	assert.Contains(t, result, "Suggestion:")
	assert.Contains(t, result, "knowmcp serve")
}

func TestFormatForUser_StandardError(t *testing.T) {
	err := errors.New("something went wrong")

	result := FormatForUser(err)

	assert.Contains(t, result, "something went wrong")
}

func TestFormatForUser_NilError(t *testing.T) {
	assert.Empty(t, FormatForUser(nil))
}

func TestFormatForCLI_WrapsStandardError(t *testing.T) {
	result := FormatForCLI(errors.New("boom"))

	assert.Contains(t, result, "Error: boom")
	assert.Contains(t, result, ErrCodeInternal)
}

func TestFormatJSON_BasicError(t *testing.T) {
	err := New(ErrCodeStorageQuery, "query failed", nil).
		WithDetail("table", "chunks").
		WithSuggestion("Check the database file")

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var decoded jsonError
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeStorageQuery, decoded.Code)
	assert.Equal(t, "query failed", decoded.Message)
	assert.Equal(t, string(CategoryStorage), decoded.Category)
	assert.Equal(t, "chunks", decoded.Details["table"])
	assert.Equal(t, "Check the database file", decoded.Suggestion)
}

func TestFormatJSON_IncludesCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := Wrap(ErrCodeStorageBusy, cause)

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var decoded jsonError
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "database is locked", decoded.Cause)
	assert.True(t, decoded.Retryable)
}

func TestFormatForLog_StructuredAttrs(t *testing.T) {
	err := New(ErrCodeIndexCorrupt, "index_meta.json unreadable", errors.New("EOF")).
		WithDetail("path", "/data/index/chunks")

	attrs := FormatForLog(err)

	assert.Equal(t, ErrCodeIndexCorrupt, attrs["error_code"])
	assert.Equal(t, string(CategoryIndex), attrs["category"])
	assert.Equal(t, "EOF", attrs["cause"])
	assert.Equal(t, "/data/index/chunks", attrs["detail_path"])
}

func TestFormatForLog_PlainError(t *testing.T) {
	attrs := FormatForLog(errors.New("plain"))

	assert.Equal(t, "plain", attrs["error"])
	assert.Nil(t, FormatForLog(nil))
}
