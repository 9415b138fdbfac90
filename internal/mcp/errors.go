// Package mcp exposes the edm search engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
)

// MCP error codes returned to clients.
const (
	// ErrCodeIndexUnavailable indicates the document index cannot be read.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeCatalogUnavailable indicates the source catalog cannot be read.
	ErrCodeCatalogUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeSourceNotFound indicates an unknown source name.
	ErrCodeSourceNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrResourceNotFound indicates the requested resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")
)

// MCPError is a protocol error with a JSON-RPC code.
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

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	if ee, ok := edmerrors.As(err); ok {
		return mapEdmError(ee)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{Code: ErrCodeInvalidParams, Message: "Invalid parameters."}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Resource not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Resource '%s' not found.", uri)}
}

func mapEdmError(ee *edmerrors.EdmError) *MCPError {
	message := ee.Message
	if ee.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ee.Message, ee.Suggestion)
	}

	switch ee.Category {
	case edmerrors.CategoryValidation:
		if ee.Code == edmerrors.ErrCodeSourceNotFound {
			return &MCPError{Code: ErrCodeSourceNotFound, Message: message}
		}
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case edmerrors.CategoryIndex:
		switch ee.Code {
		case edmerrors.ErrCodeIndexTimeout:
			return &MCPError{Code: ErrCodeTimeout, Message: message}
		case edmerrors.ErrCodeCatalogUnavailable:
			return &MCPError{Code: ErrCodeCatalogUnavailable, Message: message}
		default:
			return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
		}
	case edmerrors.CategoryIO:
		if ee.Code == edmerrors.ErrCodeCorruptIndex {
			return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	default: // config, internal and unknown
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
