// Package engine runs the question loop: it asks the reasoning model for the
// next step, dispatches the requested tools and stops once a terminal tool
// has delivered an answer.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/habiliai/dataagent/internal/tracing"
	"github.com/habiliai/dataagent/llm"
	"github.com/habiliai/dataagent/memory"
	"github.com/habiliai/dataagent/tool"
	"go.opentelemetry.io/otel/trace"
)

// SchemaSource provides the warehouse overview embedded in the system prompt.
type SchemaSource interface {
	FullSchema(ctx context.Context) (string, error)
}

type Engine struct {
	model     llm.Model
	registry  *tool.Registry
	retriever *memory.Retriever
	schema    SchemaSource
	display   Display
	logger    *slog.Logger
	tracer    trace.Tracer

	conf          config.AgentConfig
	maxTokens     int
	modelTimeout  time.Duration
	memoryTimeout time.Duration

	schemaMu       sync.Mutex
	schemaOverview string

	indexing sync.WaitGroup
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithRetriever enables memory retrieval before each question and indexing
// after each answer.
func WithRetriever(retriever *memory.Retriever) Option {
	return func(e *Engine) {
		e.retriever = retriever
	}
}

func WithSchema(schema SchemaSource) Option {
	return func(e *Engine) {
		e.schema = schema
	}
}

func WithDisplay(display Display) Option {
	return func(e *Engine) {
		e.display = display
	}
}

func WithAgentConfig(conf config.AgentConfig) Option {
	return func(e *Engine) {
		e.conf = conf
	}
}

func WithModelConfig(conf config.ModelConfig) Option {
	return func(e *Engine) {
		e.maxTokens = conf.MaxTokens
		e.modelTimeout = conf.Timeout
	}
}

func WithMemoryTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.memoryTimeout = timeout
	}
}

func NewEngine(model llm.Model, registry *tool.Registry, opts ...Option) *Engine {
	defaults := config.NewConfig()
	e := &Engine{
		model:         model,
		registry:      registry,
		display:       NopDisplay{},
		logger:        mylog.Discard(),
		tracer:        tracing.Noop(),
		conf:          defaults.Agent,
		maxTokens:     defaults.Model.MaxTokens,
		modelTimeout:  defaults.Model.Timeout,
		memoryTimeout: defaults.Memory.Timeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *tool.Registry {
	return e.registry
}

func (e *Engine) Retriever() *memory.Retriever {
	return e.retriever
}

// Wait blocks until background memory indexing has finished.
func (e *Engine) Wait() {
	e.indexing.Wait()
}

// InvalidateSchema drops the cached schema overview, e.g. after re-indexing.
func (e *Engine) InvalidateSchema() {
	e.schemaMu.Lock()
	defer e.schemaMu.Unlock()
	e.schemaOverview = ""
}

func (e *Engine) schemaContext(ctx context.Context) string {
	if e.schema == nil {
		return ""
	}

	e.schemaMu.Lock()
	defer e.schemaMu.Unlock()
	if e.schemaOverview != "" {
		return e.schemaOverview
	}

	overview, err := e.schema.FullSchema(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to load schema overview", "err", err)
		return ""
	}
	e.schemaOverview = overview
	return overview
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
