// Package mcp implements the Model Context Protocol server for knowmcp.
package mcp

import (
	"context"
	"errors"
	"fmt"

	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
)

// Custom MCP error codes for knowmcp.
const (
	// ErrCodeItemNotFound indicates the requested item does not exist.
	ErrCodeItemNotFound = -32001

	// ErrCodeIndexUnavailable indicates the search indices are not ready.
	ErrCodeIndexUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var ke *knowerrors.KnowError
	if errors.As(err, &ke) {
		return mapKnowError(ke)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewItemNotFoundError creates an error for a missing item.
func NewItemNotFoundError(id string) *MCPError {
	return &MCPError{
		Code:    ErrCodeItemNotFound,
		Message: fmt.Sprintf("Item '%s' not found.", id),
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// mapKnowError converts a KnowError to an MCPError. The suggestion is
// appended to the message so AI clients can relay it to the user.
func mapKnowError(ke *knowerrors.KnowError) *MCPError {
	message := ke.Message
	if ke.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ke.Message, ke.Suggestion)
	}

	switch ke.Category {
	case knowerrors.CategoryValidation:
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: message,
		}
	case knowerrors.CategoryIndex:
		return &MCPError{
			Code:    ErrCodeIndexUnavailable,
			Message: message,
		}
	case knowerrors.CategoryStorage, knowerrors.CategoryConfig:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: message,
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: message,
		}
	}
}
