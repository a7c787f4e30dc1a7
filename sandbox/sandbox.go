package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/habiliai/dataagent/warehouse"
	"go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	ResultVariable  = "result"
	defaultMaxSteps = 50_000_000
)

var ErrMissingResult = errors.New("Code must define a 'result' variable")

// ExecError describes a failed program as "<Kind>: <message>\n<trace>".
type ExecError struct {
	Kind    string
	Message string
	Trace   string
}

func (e *ExecError) Error() string {
	if e.Trace == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s\n%s", e.Kind, e.Message, e.Trace)
}

type Output struct {
	Value   Value
	Printed string
}

// Executor runs restricted programs. The interpreter has no load statement,
// no file, network or process access, and a step budget per run. The only
// capabilities are the bound inputs, num, frame, math and json.
type Executor struct {
	maxSteps uint64
	logger   *slog.Logger
}

type Option func(*Executor)

func WithMaxSteps(steps uint64) Option {
	return func(e *Executor) {
		if steps > 0 {
			e.maxSteps = steps
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		maxSteps: defaultMaxSteps,
		logger:   mylog.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Execute runs code with each input bound by name and returns its result binding.
func (e *Executor) Execute(ctx context.Context, code string, inputs map[string]*warehouse.Table) (*Output, error) {
	var printed strings.Builder
	thread := &starlark.Thread{
		Name: "run_code",
		Print: func(_ *starlark.Thread, msg string) {
			printed.WriteString(msg)
			printed.WriteByte('\n')
		},
	}
	thread.SetMaxExecutionSteps(e.maxSteps)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, err := starlark.ExecFileOptions(fileOptions, thread, "code.star", code, e.predeclared(inputs))
	if err != nil {
		execErr := classify(ctx, err)
		e.logger.Debug("code execution failed", "kind", execErr.Kind, "err", execErr.Message)
		return nil, execErr
	}

	result, ok := globals[ResultVariable]
	if !ok {
		return nil, ErrMissingResult
	}

	return &Output{
		Value:   newValue(result),
		Printed: printed.String(),
	}, nil
}

func (e *Executor) predeclared(inputs map[string]*warehouse.Table) starlark.StringDict {
	predeclared := starlark.StringDict{
		"num":   numModule,
		"frame": frameModule,
		"math":  starlarkmath.Module,
		"json":  json.Module,
	}

	all := starlark.NewDict(len(inputs))
	for name, table := range inputs {
		f := NewFrame(table)
		predeclared[name] = f
		_ = all.SetKey(starlark.String(name), f)
	}
	all.Freeze()
	predeclared["inputs"] = all

	return predeclared
}

func classify(ctx context.Context, err error) *ExecError {
	var (
		evalErr    *starlark.EvalError
		syntaxErr  syntax.Error
		resolveErr resolve.ErrorList
	)
	switch {
	case errors.As(err, &evalErr):
		kind := "EvalError"
		if ctx.Err() != nil || strings.Contains(evalErr.Msg, "cancelled") {
			kind = "Cancelled"
		}
		return &ExecError{Kind: kind, Message: evalErr.Msg, Trace: evalErr.Backtrace()}
	case errors.As(err, &syntaxErr):
		return &ExecError{Kind: "SyntaxError", Message: syntaxErr.Msg, Trace: syntaxErr.Pos.String()}
	case errors.As(err, &resolveErr):
		msgs := make([]string, len(resolveErr))
		positions := make([]string, len(resolveErr))
		for i, re := range resolveErr {
			msgs[i] = re.Msg
			positions[i] = re.Pos.String()
		}
		return &ExecError{Kind: "ResolveError", Message: strings.Join(msgs, "; "), Trace: strings.Join(positions, "\n")}
	default:
		return &ExecError{Kind: "Error", Message: err.Error()}
	}
}
