package tool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/habiliai/dataagent/llm"
	"github.com/habiliai/dataagent/sandbox"
	"github.com/xeipuuv/gojsonschema"
)

type entry struct {
	def     Definition
	handler Handler
	schema  *gojsonschema.Schema
}

// Registry maps unique tool names to their definitions and handlers.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

type RegistryOption func(*Registry)

func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:  mylog.Discard(),
		entries: map[string]*entry{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a tool whose parameters are given as a JSON schema.
func (r *Registry) Add(def Definition, handler Handler) error {
	if def.Name == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "tool name is required")
	}
	if def.Parameters == nil {
		def.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	schema, err := compileSchema(def.Parameters)
	if err != nil {
		return errors.Wrapf(err, "tool %s", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[def.Name]; ok {
		return errors.Errorf("tool %s already registered", def.Name)
	}
	r.entries[def.Name] = &entry{def: def, handler: handler, schema: schema}
	r.order = append(r.order, def.Name)
	return nil
}

// Register adds a tool whose parameters are reflected from In. Arguments are
// validated against that schema and decoded into In before fn runs.
func Register[In any](r *Registry, def Definition, fn func(ctx context.Context, in In) (*Result, error)) error {
	params, err := reflectParameters[In]()
	if err != nil {
		return errors.Wrapf(err, "tool %s", def.Name)
	}
	def.Parameters = params

	return r.Add(def, func(ctx context.Context, args map[string]any) (*Result, error) {
		in, err := decodeArguments[In](args)
		if err != nil {
			return &Result{
				Text:   fmt.Sprintf("ERROR: invalid arguments for %s: %v", def.Name, err),
				Failed: true,
			}, nil
		}
		return fn(ctx, in)
	})
}

func (r *Registry) Get(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Definition{}, errors.Wrapf(errors.ErrUnknownTool, "tool %s not found", name)
	}
	return e.def, nil
}

// Definitions returns every tool in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.entries[name].def)
	}
	return defs
}

// Enabled returns the tools exposed to the model in mode.
func (r *Registry) Enabled(mode OutputMode) []Definition {
	var defs []Definition
	for _, def := range r.Definitions() {
		if def.EnabledIn(mode) {
			defs = append(defs, def)
		}
	}
	return defs
}

func (r *Registry) Specs(mode OutputMode) []llm.ToolSpec {
	defs := r.Enabled(mode)
	specs := make([]llm.ToolSpec, 0, len(defs))
	for _, def := range defs {
		specs = append(specs, llm.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	return specs
}

// Dispatch runs one call. Unknown names return errors.ErrUnknownTool. Every
// other problem, including handler errors and panics, is returned as a failed
// Result whose Text is meant for the model.
func (r *Registry) Dispatch(ctx context.Context, call llm.ToolCall) (result *Result, def Definition, err error) {
	r.mu.RLock()
	e, ok := r.entries[call.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, Definition{}, errors.Wrapf(errors.ErrUnknownTool, "Unknown tool: %s", call.Name)
	}
	def = e.def

	args, err := parseArguments(call.Arguments)
	if err != nil {
		return &Result{Text: fmt.Sprintf("ERROR: invalid arguments for %s: %v", def.Name, err), Failed: true}, def, nil
	}
	if err := validateArguments(e.schema, args); err != nil {
		return &Result{Text: fmt.Sprintf("ERROR: invalid arguments for %s: %v", def.Name, err), Failed: true}, def, nil
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", def.Name, "panic", p, "stack", string(debug.Stack()))
			result, err = &Result{Text: fmt.Sprintf("Error: Panic: %v", p), Failed: true}, nil
		}
	}()

	result, err = e.handler(ctx, args)
	if err != nil {
		r.logger.Debug("tool failed", "tool", def.Name, "err", err)
		return &Result{Text: fmt.Sprintf("Error: %s: %v", ErrorKind(err), err), Failed: true}, def, nil
	}
	if result == nil {
		result = &Result{}
	}
	return result, def, nil
}

// ErrorKind names the class of err for tool results.
func ErrorKind(err error) string {
	var execErr *sandbox.ExecError
	switch {
	case errors.As(err, &execErr):
		return execErr.Kind
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	default:
		return "Error"
	}
}
