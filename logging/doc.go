// Package logging provides a minimal logging interface and slog adapters for
// agentflow.
//
// The Logger interface defines the standard leveled methods (Debug, Info,
// Warn, Error) that the orchestrator, dispatcher and backends use. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping a *slog.Logger
//   - FlowLogger with session/component context and pipeline helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	orch := agent.New(gen, func(o *agent.Options) { o.Logger = logger })
package logging
