// Package errors provides structured error handling for knowmcp.
//
// Error codes follow the pattern KNOW_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (database, disk)
//   - 3XX: Index errors (inverted chunk index, legacy item index)
//   - 4XX: Validation errors
//   - 5XX: Internal errors (chunking, vector model, search)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates database and disk errors.
	CategoryStorage Category = "STORAGE"
	// CategoryIndex indicates inverted-index errors.
	CategoryIndex Category = "INDEX"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "KNOW_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "KNOW_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeStorageOpen  = "KNOW_201_STORAGE_OPEN"
	ErrCodeStorageQuery = "KNOW_202_STORAGE_QUERY"
	ErrCodeStorageTx    = "KNOW_203_STORAGE_TX"
	ErrCodeStorageBusy  = "KNOW_204_STORAGE_BUSY"
	ErrCodeLockHeld     = "KNOW_205_LOCK_HELD"

	// Index errors (300-399)
	ErrCodeIndexOpen    = "KNOW_301_INDEX_OPEN"
	ErrCodeIndexCorrupt = "KNOW_302_INDEX_CORRUPT"
	ErrCodeIndexWrite   = "KNOW_303_INDEX_WRITE"
	ErrCodeIndexSearch  = "KNOW_304_INDEX_SEARCH"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "KNOW_401_INVALID_INPUT"
	ErrCodeQueryEmpty        = "KNOW_402_QUERY_EMPTY"
	ErrCodeInvalidPagination = "KNOW_403_INVALID_PAGINATION"
	ErrCodeUnsupportedSource = "KNOW_404_UNSUPPORTED_SOURCE"

	// Internal errors (500-599)
	ErrCodeInternal        = "KNOW_501_INTERNAL"
	ErrCodeChunkingFailed  = "KNOW_502_CHUNKING_FAILED"
	ErrCodeVectorFitFailed = "KNOW_503_VECTOR_FIT_FAILED"
	ErrCodeSearchFailed    = "KNOW_504_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 8 {
		return CategoryInternal
	}

	// Numeric portion follows the "KNOW_" prefix (e.g., "201" from
	// "KNOW_201_STORAGE_OPEN").
	switch code[5] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryIndex
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeLockHeld:
		// Another instance holds the data directory; abort startup.
		return SeverityFatal
	case ErrCodeIndexCorrupt, ErrCodeChunkingFailed, ErrCodeVectorFitFailed:
		// Locally recovered: index demoted to absent, degenerate chunk
		// used, previous vector model retained.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStorageBusy, ErrCodeStorageTx:
		return true
	default:
		return false
	}
}
