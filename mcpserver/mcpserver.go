// Package mcpserver exposes a tool registry over the Model Context Protocol so
// external MCP clients can list and call the same tools the agent uses.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/tool"
)

// Name is the server name announced during initialization.
const Name = "agentflow"

// Executor is the tool surface exposed over MCP. *tool.Dispatcher implements it.
type Executor interface {
	Execute(ctx context.Context, name string, params map[string]any) core.ToolResult
	ListTools() []core.ToolInfo
}

// Options configures the MCP server.
type Options struct {
	Version string
	Logger  logging.Logger
}

// New builds an MCP server with one MCP tool per registered tool. Tools
// registered on exec after New returns are not exposed.
func New(exec Executor, optFns ...func(o *Options)) (*server.MCPServer, error) {
	opts := Options{Version: "dev"}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)

	s := server.NewMCPServer(
		Name,
		opts.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	for _, info := range exec.ListTools() {
		def, err := definition(info)
		if err != nil {
			return nil, err
		}
		s.AddTool(def, handler(exec, info.Name, logger))
	}
	return s, nil
}

func definition(info core.ToolInfo) (mcp.Tool, error) {
	params := info.Parameters
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("marshal schema for %s: %w", info.Name, err)
	}
	return mcp.NewToolWithRawSchema(info.Name, info.Description, raw), nil
}

func handler(exec Executor, name string, logger logging.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		res := exec.Execute(ctx, name, args)
		if !res.Success {
			logger.Debug("mcp.tool.failed", "tool", name, "code", res.Code, "error", res.Error)
			return mcp.NewToolResultError(tool.ResultError(name, res).Error()), nil
		}
		return mcp.NewToolResultText(tool.FormatResult(res.Data)), nil
	}
}
