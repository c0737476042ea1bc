package tool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/kaptinlin/jsonschema"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
)

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Logger receives tool.* events (defaults to NoOp).
	Logger logging.Logger
}

type registration struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Dispatcher is the tool registry. It resolves tools by name, validates
// parameters against the declared schema and converts every failure (unknown
// tool, invalid input, handler error or panic) into a failed core.ToolResult.
//
// The registry is read-mostly: registration takes a write lock, execution
// only a read lock held for the lookup.
type Dispatcher struct {
	mu     sync.RWMutex
	tools  map[string]*registration
	logger logging.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Dispatcher{tools: map[string]*registration{}, logger: logging.OrNoOp(opts.Logger)}
}

// Register adds a tool. The parameter schema is compiled once here; an
// invalid schema or a duplicate name is rejected.
func (d *Dispatcher) Register(t Tool) error {
	if t == nil || t.Name() == "" {
		return errors.New("tool must have a name")
	}
	schema, err := compileSchema(t.Parameters())
	if err != nil {
		return fmt.Errorf("register tool %s: %w", t.Name(), err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.tools[t.Name()]; exists {
		return fmt.Errorf("register tool %s: %w", t.Name(), ErrDuplicateTool)
	}
	d.tools[t.Name()] = &registration{tool: t, schema: schema}
	d.logger.Info("tool.registered", "tool", t.Name())
	return nil
}

// RegisterFunc registers a plain function as a tool.
func (d *Dispatcher) RegisterFunc(name, description string, parameters map[string]any, fn Func) error {
	return d.Register(NewFunctionTool(name, description, parameters, fn))
}

// Execute runs the named tool. It never panics and never returns a Go error:
// every failure is reported through the returned ToolResult.
func (d *Dispatcher) Execute(ctx context.Context, name string, params map[string]any) (res core.ToolResult) {
	d.mu.RLock()
	reg, ok := d.tools[name]
	d.mu.RUnlock()
	if !ok {
		d.logger.Warn("tool.call.not_found", "tool", name)
		return core.NewToolFailure(CodeNotFound, fmt.Sprintf("tool '%s' not found", name))
	}

	if err := ValidateParameters(params, reg.tool.Parameters()); err != nil {
		d.logger.Warn("tool.call.validation_failed", "tool", name, "error", err.Error())
		return core.NewToolFailure(CodeValidation, fmt.Sprintf("parameter validation failed: %v", err))
	}
	if err := validateSchema(reg.schema, params); err != nil {
		d.logger.Warn("tool.call.validation_failed", "tool", name, "error", err.Error())
		return core.NewToolFailure(CodeValidation, fmt.Sprintf("parameter validation failed: %v", err))
	}

	start := time.Now()
	d.logger.Debug("tool.call.start", "tool", name)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool.call.panic", "tool", name, "recover", r, "stack", string(debug.Stack()))
			res = core.NewToolFailure(CodeExecution, fmt.Sprintf("tool panicked: %v", r))
		}
	}()

	result, err := reg.tool.Call(ctx, params)
	logging.LogToolCall(d.logger, name, time.Since(start), err)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			code := toolErr.Code
			if code == "" {
				code = CodeExecution
			}
			return core.NewToolFailure(code, toolErr.Message)
		}
		return core.NewToolFailure(CodeExecution, err.Error())
	}

	return core.NewToolSuccess(result)
}

// ListTools describes every registered tool, sorted by name.
func (d *Dispatcher) ListTools() []core.ToolInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	infos := make([]core.ToolInfo, 0, len(d.tools))
	for _, reg := range d.tools {
		infos = append(infos, core.ToolInfo{
			Name:        reg.tool.Name(),
			Description: reg.tool.Description(),
			Parameters:  reg.tool.Parameters(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Has reports whether a tool is registered.
func (d *Dispatcher) Has(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.tools[name]
	return ok
}

// Health reports the number of registered tools.
func (d *Dispatcher) Health(_ context.Context) (core.HealthStatus, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return core.Healthy(map[string]any{"tool_count": len(d.tools)}), nil
}
