package core

// ToolCall is a tool name plus its structured parameters, produced by intent
// identification and consumed by a tool dispatcher.
type ToolCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// ToolResult is a tagged success/failure value. On success Data carries the
// handler's result; on failure Error describes the problem and Code
// categorizes it (NOT_FOUND, VALIDATION_ERROR, EXECUTION_ERROR).
type ToolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// NewToolSuccess wraps a successful tool result.
func NewToolSuccess(data any) ToolResult {
	return ToolResult{Success: true, Data: data}
}

// NewToolFailure builds a failed tool result.
func NewToolFailure(code, message string) ToolResult {
	return ToolResult{Success: false, Error: message, Code: code}
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
