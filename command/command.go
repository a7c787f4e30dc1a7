// Package command implements the slash commands typed at the prompt, such as
// /model or /session save.
package command

import (
	"context"
	"log/slog"
	"strings"

	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/engine"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/habiliai/dataagent/memory"
	"github.com/habiliai/dataagent/session"
	"github.com/habiliai/dataagent/tool"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Settings are the user choices that slash commands change.
type Settings struct {
	Model      string
	OutputMode tool.OutputMode
	RAGVerbose bool
	Verbose    bool
}

func NewSettings(conf *config.Config) *Settings {
	mode := tool.OutputMode(conf.Model.OutputMode)
	if !mode.Valid() {
		mode = tool.ModeAuto
	}
	return &Settings{Model: conf.Model.Name, OutputMode: mode}
}

// Engine returns the per-question settings for the engine.
func (s *Settings) Engine() engine.Settings {
	return engine.Settings{
		Model:         s.Model,
		OutputMode:    s.OutputMode,
		ShowRetrieval: s.RAGVerbose,
	}
}

// Reply is the outcome of one command. OK is false for usage errors and
// failures; Text is shown either way.
type Reply struct {
	OK   bool
	Text string
}

func ok(text string) Reply   { return Reply{OK: true, Text: text} }
func fail(text string) Reply { return Reply{Text: text} }

type Command struct {
	Name        string
	Description string
	Subcommands []string

	run func(ctx context.Context, arg string) Reply
}

// Completion is a suggested command line and an optional description.
type Completion struct {
	Text        string
	Description string
}

type Registry struct {
	settings  *Settings
	sessions  *session.Manager
	retriever *memory.Retriever
	schema    memory.SchemaSource
	logger    *slog.Logger
	numbers   *message.Printer

	commands []*Command
}

type Option func(*Registry)

// WithSessions enables /session and the session part of /status.
func WithSessions(sessions *session.Manager) Option {
	return func(r *Registry) {
		r.sessions = sessions
	}
}

// WithMemory enables /rag. schema is indexed by /rag index.
func WithMemory(retriever *memory.Retriever, schema memory.SchemaSource) Option {
	return func(r *Registry) {
		r.retriever = retriever
		r.schema = schema
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func NewRegistry(settings *Settings, opts ...Option) *Registry {
	r := &Registry{
		settings: settings,
		logger:   mylog.Discard(),
		numbers:  message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.commands = []*Command{
		{Name: "model", Description: "Change the AI model", Subcommands: config.AvailableModels, run: r.model},
		{Name: "output", Description: "Set output mode constraint", Subcommands: outputModeNames(), run: r.output},
		{Name: "session", Description: "Session management", Subcommands: []string{"new", "save", "load", "list", "clear"}, run: r.session},
		{Name: "rag", Description: "RAG memory management", Subcommands: []string{"index", "stats", "clear", "test", "verbose"}, run: r.rag},
		{Name: "status", Description: "Show current settings and session", run: r.status},
		{Name: "help", Description: "Show available commands", run: r.help},
		{Name: "verbose", Description: "Toggle verbose mode (show full prompts)", run: r.verbose},
	}
	return r
}

func (r *Registry) Settings() *Settings {
	return r.settings
}

func (r *Registry) Commands() []*Command {
	return r.commands
}

// IsCommand reports whether input should be handled by Execute.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

func (r *Registry) lookup(name string) *Command {
	for _, c := range r.commands {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (r *Registry) Execute(ctx context.Context, input string) Reply {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return fail("Not a slash command")
	}

	name, arg, _ := strings.Cut(input[1:], " ")
	name = strings.ToLower(name)
	c := r.lookup(name)
	if c == nil {
		return fail("Unknown command: /" + name)
	}

	r.logger.DebugContext(ctx, "running command", "command", name, "arg", arg)
	return c.run(ctx, strings.TrimSpace(arg))
}

// Complete suggests command names, or subcommands once a space was typed.
func (r *Registry) Complete(partial string) []Completion {
	if !strings.HasPrefix(partial, "/") {
		return nil
	}

	name, sub, hasSub := strings.Cut(partial[1:], " ")
	var out []Completion
	if hasSub {
		c := r.lookup(name)
		if c == nil {
			return nil
		}
		for _, s := range c.Subcommands {
			if strings.HasPrefix(strings.ToLower(s), strings.ToLower(sub)) {
				out = append(out, Completion{Text: "/" + name + " " + s})
			}
		}
		return out
	}

	for _, c := range r.commands {
		if strings.HasPrefix(c.Name, strings.ToLower(name)) {
			out = append(out, Completion{Text: "/" + c.Name, Description: c.Description})
		}
	}
	return out
}

func outputModeNames() []string {
	names := make([]string, 0, len(tool.OutputModes))
	for _, m := range tool.OutputModes {
		names = append(names, string(m))
	}
	return names
}
