package mcp

import (
	"errors"
	"fmt"

	"github.com/dshills/ctxgraph/internal/engine"
	"github.com/dshills/ctxgraph/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Project not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeEntityNotFound     = -32005 // Entity reference did not resolve
)

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// invalidParam reports a rejected argument
func invalidParam(param, reason string) error {
	return newMCPError(ErrorCodeInvalidParams, "invalid "+param, map[string]interface{}{
		"param":  param,
		"reason": reason,
	})
}

// toMCPError maps engine and domain errors to MCP error codes
func toMCPError(message string, err error) error {
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, engine.ErrIndexingInProgress):
		return newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", data)
	case errors.Is(err, engine.ErrNotIndexed):
		return newMCPError(ErrorCodeNotIndexed, "project not indexed, run index_codebase first", data)
	case errors.Is(err, engine.ErrOutsideRoot):
		return newMCPError(ErrorCodeInvalidParams, "path is not the served project root", data)
	case errors.Is(err, types.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", data)
	case errors.Is(err, types.ErrEntityNotFound):
		return newMCPError(ErrorCodeEntityNotFound, "entity not found", data)
	}
	return newMCPError(ErrorCodeInternalError, message, data)
}
