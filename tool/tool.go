// Package tool implements the tool dispatch subsystem: a registry mapping tool
// names to handlers, schema validated parameters, uniform error codes and the
// replaceable intent classification policy that decides which tools a raw
// query triggers.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentflow/core"
)

// Error codes carried by failed tool results.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeValidation     = "VALIDATION_ERROR"
	CodeExecution      = "EXECUTION_ERROR"
	CodeInvalidRequest = "INVALID_REQUEST"
)

var (
	// ErrToolNotFound is matched by ToolErrors with CodeNotFound.
	ErrToolNotFound = errors.New("tool not found")
	// ErrDuplicateTool is returned when registering a name twice.
	ErrDuplicateTool = errors.New("tool already registered")
)

// Tool is a named, schema-described capability.
//
// Tool implementations should:
//   - Provide clear, descriptive snake_case names and descriptions
//   - Define a JSON schema for their parameters
//   - Return errors rather than panic
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with arguments already validated by the dispatcher.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ToolError represents errors that occur during tool lookup, validation or execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Is lets errors.Is match ErrToolNotFound.
func (e *ToolError) Is(target error) bool {
	return target == ErrToolNotFound && e.Code == CodeNotFound
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// ResultError converts a failed result into a *ToolError. It returns nil for
// successful results.
func ResultError(name string, res core.ToolResult) error {
	if res.Success {
		return nil
	}
	return NewToolError(name, res.Error, res.Code)
}

// FormatResult renders a tool result value for prompt assembly.
func FormatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case fmt.Stringer:
		return r.String()
	default:
		return fmt.Sprintf("%v", r)
	}
}
