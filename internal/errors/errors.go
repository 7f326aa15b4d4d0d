package errors

import (
	"fmt"
)

// KnowError is the structured error type for knowmcp.
// It provides rich context for error handling, logging, and user presentation.
type KnowError struct {
	// Code is the unique error code (e.g., "KNOW_201_STORAGE_OPEN").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Index, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *KnowError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *KnowError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with KnowError.
func (e *KnowError) Is(target error) bool {
	if t, ok := target.(*KnowError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *KnowError) WithDetail(key, value string) *KnowError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *KnowError) WithSuggestion(suggestion string) *KnowError {
	e.Suggestion = suggestion
	return e
}

// New creates a new KnowError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *KnowError {
	return &KnowError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a KnowError from an existing error.
// The error's message becomes the KnowError message.
func Wrap(code string, err error) *KnowError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *KnowError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError creates a database-related error.
// Storage failures propagate to the caller so the write can be retried.
func StorageError(message string, cause error) *KnowError {
	return New(ErrCodeStorageQuery, message, cause)
}

// IndexError creates an inverted-index error.
func IndexError(message string, cause error) *KnowError {
	return New(ErrCodeIndexWrite, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *KnowError {
	return New(ErrCodeInvalidInput, message, cause)
}

// ChunkingError creates a chunking error. Never propagated past the
// chunker boundary; the degenerate single-chunk result is used instead.
func ChunkingError(message string, cause error) *KnowError {
	return New(ErrCodeChunkingFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *KnowError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a KnowError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ke, ok := err.(*KnowError); ok {
		return ke.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ke, ok := err.(*KnowError); ok {
		return ke.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a KnowError.
// Returns empty string if not a KnowError.
func GetCode(err error) string {
	if ke, ok := err.(*KnowError); ok {
		return ke.Code
	}
	return ""
}

// GetCategory extracts the category from a KnowError.
// Returns empty string if not a KnowError.
func GetCategory(err error) Category {
	if ke, ok := err.(*KnowError); ok {
		return ke.Category
	}
	return ""
}
