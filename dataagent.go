// Package dataagent answers natural-language questions about a data warehouse.
// It wires the reasoning model, the read-only warehouse, the code sandbox, the
// long-term memory and the session store into one Agent.
package dataagent

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/habiliai/dataagent/artifact"
	"github.com/habiliai/dataagent/command"
	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/display"
	"github.com/habiliai/dataagent/engine"
	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/habiliai/dataagent/internal/tracing"
	"github.com/habiliai/dataagent/llm"
	"github.com/habiliai/dataagent/memory"
	"github.com/habiliai/dataagent/notes"
	"github.com/habiliai/dataagent/platform"
	"github.com/habiliai/dataagent/sandbox"
	"github.com/habiliai/dataagent/session"
	"github.com/habiliai/dataagent/tool"
	"github.com/habiliai/dataagent/warehouse"
)

type (
	Agent struct {
		conf     *config.Config
		logger   *slog.Logger
		provider *tracing.Provider

		model     llm.Model
		warehouse *warehouse.Executor
		memory    *memory.Service
		retriever *memory.Retriever
		registry  *tool.Registry
		mcp       *tool.MCPBridge
		artifacts *artifact.Server
		notes     *notes.File
		sessions  *session.Manager
		commands  *command.Registry
		engine    *engine.Engine

		output  io.Writer
		console *display.Console
		display engine.Display
		opener  artifact.Opener
		store   memory.Store
		embed   memory.Embedder
	}
	Option func(*Agent)
)

func WithConfig(conf *config.Config) Option {
	return func(a *Agent) {
		a.conf = conf
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithModel replaces the provider router built from the model config.
func WithModel(model llm.Model) Option {
	return func(a *Agent) {
		a.model = model
	}
}

// WithOutput sets where the console display writes. Default: os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(a *Agent) {
		a.output = w
	}
}

// WithDisplay replaces the console display.
func WithDisplay(d engine.Display) Option {
	return func(a *Agent) {
		a.display = d
	}
}

// WithArtifactOpener replaces the browser launcher used for artifacts.
func WithArtifactOpener(opener artifact.Opener) Option {
	return func(a *Agent) {
		a.opener = opener
	}
}

// WithMemory replaces the configured vector store and embedder.
func WithMemory(store memory.Store, embedder memory.Embedder) Option {
	return func(a *Agent) {
		a.store = store
		a.embed = embedder
	}
}

func New(ctx context.Context, opts ...Option) (_ *Agent, err error) {
	a := &Agent{
		conf:   config.NewConfig(),
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.conf.Validate(); err != nil {
		return nil, err
	}
	if a.logger == nil {
		a.logger = mylog.NewLogger(a.conf.Log.Level, a.conf.Log.Handler)
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.provider = tracing.NewProvider(a.logger, a.conf.Log.Verbose)
	if a.model == nil {
		a.model = llm.NewRouter(a.conf.Model)
	}

	a.warehouse, err = warehouse.Open(ctx, a.conf.Warehouse, warehouse.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	if err := a.openMemory(); err != nil {
		return nil, err
	}

	if err := a.buildTools(ctx); err != nil {
		return nil, err
	}

	a.sessions, err = session.NewManager(a.conf.SessionsPath(),
		session.WithLogger(a.logger),
		session.WithWarningPercent(a.conf.Agent.ContextWarningPercent),
	)
	if err != nil {
		return nil, err
	}

	if a.display == nil {
		a.console = display.NewConsole(a.output)
		a.display = a.console
	}

	engineOpts := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithTracer(a.provider.Tracer()),
		engine.WithSchema(a.warehouse),
		engine.WithDisplay(a.display),
		engine.WithAgentConfig(a.conf.Agent),
		engine.WithModelConfig(a.conf.Model),
		engine.WithMemoryTimeout(a.conf.Memory.Timeout),
	}
	commandOpts := []command.Option{
		command.WithSessions(a.sessions),
		command.WithLogger(a.logger),
	}
	if a.retriever != nil {
		engineOpts = append(engineOpts, engine.WithRetriever(a.retriever))
		commandOpts = append(commandOpts, command.WithMemory(a.retriever, a.warehouse))
	}
	a.engine = engine.NewEngine(a.model, a.registry, engineOpts...)
	a.commands = command.NewRegistry(command.NewSettings(a.conf), commandOpts...)

	return a, nil
}

func (a *Agent) openMemory() error {
	if !a.conf.Memory.Enabled {
		return nil
	}

	embedder := a.embed
	if embedder == nil {
		switch {
		case a.conf.Memory.Embedder == "openai" && a.conf.Model.OpenAIAPIKey != "":
			embedder = memory.NewOpenAIEmbedder(a.conf.Model.OpenAIAPIKey, a.conf.Memory.EmbeddingModel, a.conf.Memory.Dimension)
		case a.conf.Memory.Embedder == "openai":
			a.logger.Warn("no openai api key for embeddings, falling back to the hash embedder")
			embedder = memory.NewHashEmbedder(a.conf.Memory.Dimension)
		default:
			embedder = memory.NewHashEmbedder(a.conf.Memory.Dimension)
		}
	}

	store := a.store
	if store == nil {
		if a.conf.Memory.Backend == "memory" {
			store = memory.NewInMemoryStore()
		} else {
			path := a.conf.Memory.Path
			if path == "" {
				path = filepath.Join(a.conf.Paths.StateDir, "memory.db")
			}
			var err error
			if store, err = memory.NewSqliteStore(path, embedder.Dimension()); err != nil {
				return err
			}
		}
	}

	a.memory = memory.NewService(store, embedder,
		memory.WithLogger(a.logger),
		memory.WithSampleRows(a.conf.Memory.SampleRows),
	)
	a.retriever = memory.NewRetriever(a.memory, a.conf.Retrieval, memory.WithRetrieverLogger(a.logger))
	return nil
}

func (a *Agent) buildTools(ctx context.Context) error {
	a.registry = tool.NewRegistry(tool.WithLogger(a.logger))

	artifactOpts := []artifact.Option{artifact.WithLogger(a.logger)}
	if a.opener != nil {
		artifactOpts = append(artifactOpts, artifact.WithOpener(a.opener))
	}
	a.artifacts = artifact.NewServer(a.conf.Paths.ArtifactsDir, artifactOpts...)
	a.notes = notes.NewFile(a.conf.Paths.NotesFile)

	if err := tool.RegisterBuiltins(a.registry, &tool.Builtins{
		Warehouse: a.warehouse,
		Sandbox: sandbox.NewExecutor(
			sandbox.WithMaxSteps(a.conf.Agent.CodeMaxSteps),
			sandbox.WithLogger(a.logger),
		),
		Platform:  platform.NewInspector(a.conf.Platform),
		Notes:     a.notes,
		Artifacts: a.artifacts,
		MaxRows:   a.conf.Agent.MaxRowsForModel,
		Logger:    a.logger,
	}); err != nil {
		return err
	}

	a.mcp = tool.NewMCPBridge(a.logger)
	return a.mcp.ConnectAll(ctx, a.registry, a.conf.MCPServers)
}

func (a *Agent) Config() *config.Config {
	return a.conf
}

func (a *Agent) Engine() *engine.Engine {
	return a.engine
}

func (a *Agent) Sessions() *session.Manager {
	return a.sessions
}

func (a *Agent) Commands() *command.Registry {
	return a.commands
}

func (a *Agent) Warehouse() *warehouse.Executor {
	return a.warehouse
}

func (a *Agent) Notes() *notes.File {
	return a.notes
}

// Memory is nil when memory is disabled.
func (a *Agent) Memory() *memory.Service {
	return a.memory
}

// Console is nil when a custom display was given.
func (a *Agent) Console() *display.Console {
	return a.console
}

// Session returns the current session, starting one when none is active.
func (a *Agent) Session() *session.Session {
	if s := a.sessions.Current(); s != nil {
		return s
	}
	return a.sessions.Start(a.commands.Settings().Model)
}

// Ask answers question in the current session with the current settings.
func (a *Agent) Ask(ctx context.Context, question string) (*engine.Outcome, error) {
	return a.engine.ProcessQuestion(ctx, a.Session(), question, a.commands.Settings().Engine())
}

// Execute runs a slash command and applies display changes it made.
func (a *Agent) Execute(ctx context.Context, input string) command.Reply {
	reply := a.commands.Execute(ctx, input)
	if a.console != nil {
		a.console.SetVerbose(a.commands.Settings().Verbose)
	}
	return reply
}

// IndexSchema indexes every warehouse table into memory unless it is already
// indexed or force is set.
func (a *Agent) IndexSchema(ctx context.Context, force bool) (int, error) {
	if a.memory == nil {
		return 0, errors.Wrapf(errors.ErrInvalidConfig, "memory is disabled")
	}
	if !force {
		indexed, err := a.memory.IsSchemaIndexed(ctx)
		if err != nil {
			return 0, err
		}
		if indexed {
			return 0, nil
		}
	}
	n, err := a.memory.IndexSchema(ctx, a.warehouse)
	if err != nil {
		return 0, err
	}
	a.engine.InvalidateSchema()
	return n, nil
}

// Close ends the current session and releases every resource.
func (a *Agent) Close(ctx context.Context) error {
	if a.engine != nil {
		a.engine.Wait()
	}

	var errs []error
	if a.sessions != nil {
		if s := a.sessions.Current(); s != nil && s.MessageCount > 0 {
			if _, err := a.sessions.Save(ctx, ""); err != nil {
				errs = append(errs, err)
			}
		}
		a.sessions.End()
		errs = append(errs, a.sessions.Close())
	}
	if a.mcp != nil {
		errs = append(errs, a.mcp.Close())
	}
	if a.artifacts != nil {
		errs = append(errs, a.artifacts.Close(ctx))
	}
	if a.memory != nil {
		errs = append(errs, a.memory.Close())
	}
	if a.warehouse != nil {
		errs = append(errs, a.warehouse.Close())
	}
	if a.provider != nil {
		errs = append(errs, a.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
