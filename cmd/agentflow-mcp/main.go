// Package main serves the agentflow tool registry over MCP on stdio.
package main

import (
	"flag"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/agentflow/config"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/mcpserver"
	"github.com/hupe1980/agentflow/tool"
	"github.com/hupe1980/agentflow/tool/builtin"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to an optional YAML configuration file")
	flag.Parse()

	// stdout carries the protocol, so logs go to stderr.
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.LogLevelInfo,
		Format:    "json",
		Output:    os.Stderr,
		Component: "agentflow-mcp",
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config.load.failed", "error", err.Error())
		os.Exit(1)
	}

	d := tool.NewDispatcher(func(o *tool.DispatcherOptions) { o.Logger = logger })
	if err := builtin.RegisterDefaults(d, func(o *builtin.Options) { o.SearchRoot = cfg.Tools.SearchRoot }); err != nil {
		logger.Error("tools.register.failed", "error", err.Error())
		os.Exit(1)
	}

	s, err := mcpserver.New(d, func(o *mcpserver.Options) {
		o.Version = Version
		o.Logger = logger
	})
	if err != nil {
		logger.Error("mcp.init.failed", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("mcp.serving", "tools", len(d.ListTools()))
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp.serve.failed", "error", err.Error())
		os.Exit(1)
	}
}
