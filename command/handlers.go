package command

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/tool"
)

const maxListedSessions = 10

var outputModeDescriptions = map[tool.OutputMode]string{
	tool.ModeAuto:        "Agent chooses best output tool",
	tool.ModeObservation: "Agent will only use submit_observation",
	tool.ModeQuery:       "Agent will only use submit_result",
}

func choices(items []string, current string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if item == current {
			lines = append(lines, "  "+item+"  [current]")
		} else {
			lines = append(lines, "  "+item)
		}
	}
	return strings.Join(lines, "\n")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func (r *Registry) model(_ context.Context, arg string) Reply {
	if arg == "" {
		return ok(fmt.Sprintf("Available models:\n%s\n\nUsage: /model <model-name>",
			choices(config.AvailableModels, r.settings.Model)))
	}
	if !slices.Contains(config.AvailableModels, arg) {
		return fail(fmt.Sprintf("Unknown model: %s\nAvailable: %s", arg, strings.Join(config.AvailableModels, ", ")))
	}

	r.settings.Model = arg
	if r.sessions != nil {
		if err := r.sessions.SetModel(arg); err != nil && !errors.Is(err, errors.ErrNoActiveSession) {
			r.logger.Warn("failed to update session model", "err", err)
		}
	}
	return ok("Model set to: " + arg)
}

func (r *Registry) output(_ context.Context, arg string) Reply {
	if arg == "" {
		return ok(fmt.Sprintf("Output modes:\n%s\n\nUsage: /output <mode>",
			choices(outputModeNames(), string(r.settings.OutputMode))))
	}

	mode := tool.OutputMode(strings.ToLower(arg))
	if !mode.Valid() {
		return fail(fmt.Sprintf("Unknown mode: %s\nAvailable: %s", arg, strings.Join(outputModeNames(), ", ")))
	}
	r.settings.OutputMode = mode
	return ok(fmt.Sprintf("Output mode: %s - %s", mode, outputModeDescriptions[mode]))
}

func (r *Registry) session(ctx context.Context, arg string) Reply {
	if r.sessions == nil {
		return fail("Session manager not available")
	}
	if arg == "" {
		return r.sessionStatus()
	}

	sub, subarg, _ := strings.Cut(arg, " ")
	subarg = strings.TrimSpace(subarg)
	switch strings.ToLower(sub) {
	case "new":
		s := r.sessions.Start(r.settings.Model)
		return ok("New session started: " + s.ID)

	case "save":
		s, err := r.sessions.Save(ctx, subarg)
		if errors.Is(err, errors.ErrNoActiveSession) {
			return fail("No active session to save")
		} else if err != nil {
			return fail(err.Error())
		}
		return ok("Session saved: " + s.ID + nameSuffix(s.Name))

	case "load":
		if subarg == "" {
			return fail("Usage: /session load <id-or-name>")
		}
		s, err := r.sessions.Load(ctx, subarg)
		if errors.Is(err, errors.ErrNotFound) {
			return fail("No session found matching: " + subarg)
		} else if err != nil {
			return fail(err.Error())
		}
		r.settings.Model = s.Model
		return ok("Session loaded: " + s.ID + nameSuffix(s.Name))

	case "list":
		summaries, err := r.sessions.List(ctx)
		if err != nil {
			return fail(err.Error())
		}
		if len(summaries) == 0 {
			return ok("No saved sessions")
		}

		lines := []string{"Saved Sessions:"}
		for _, s := range summaries[:min(len(summaries), maxListedSessions)] {
			lines = append(lines, r.numbers.Sprintf("  %s%s - %d msgs, %d tokens [%s]",
				s.ID, nameSuffix(s.Name), s.Messages, s.Tokens, s.Status))
		}
		return ok(strings.Join(lines, "\n"))

	case "clear":
		if s := r.sessions.Current(); s != nil {
			s.ClearHistory()
		}
		return ok("Session history cleared")

	default:
		return fail(fmt.Sprintf("Unknown session command: %s\nAvailable: new, save, load, list, clear", sub))
	}
}

func nameSuffix(name string) string {
	if name == "" || name == "-" {
		return ""
	}
	return " (" + name + ")"
}

func (r *Registry) sessionStatus() Reply {
	st := r.sessions.Status()
	if !st.Active {
		return ok("No active session")
	}

	warning := ""
	if st.Warning {
		warning = " [!]"
	}
	return ok(r.numbers.Sprintf(
		"Session: %s%s\n  Model: %s\n  Messages: %d\n  Tokens: %d (%d prompt, %d completion)\n  Context: %.1f%% of %d%s\n  Duration: %s",
		st.ID, nameSuffix(st.Name),
		st.Model,
		st.Messages,
		st.Tokens.Total, st.Tokens.Prompt, st.Tokens.Completion,
		st.UsedPercent, st.ContextLimit, warning,
		st.Duration,
	))
}

func (r *Registry) ragStats(ctx context.Context) (string, error) {
	stats, err := r.retriever.Service().Stats(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RAG Memory:\n  Schema items: %d\n  Query history: %d\n  Observations: %d",
		stats.Schema, stats.Queries, stats.Observations), nil
}

func (r *Registry) rag(ctx context.Context, arg string) Reply {
	if r.retriever == nil {
		return fail("RAG memory is not enabled")
	}

	if arg == "" {
		stats, err := r.ragStats(ctx)
		if err != nil {
			return fail("RAG stats failed: " + err.Error())
		}
		return ok(fmt.Sprintf("%s\n  Verbose mode: %s\n\nCommands: /rag index, /rag test <question>, /rag verbose, /rag clear",
			stats, onOff(r.settings.RAGVerbose)))
	}

	sub, subarg, _ := strings.Cut(arg, " ")
	subarg = strings.TrimSpace(subarg)
	service := r.retriever.Service()
	switch strings.ToLower(sub) {
	case "index":
		if r.schema == nil {
			return fail("Indexing failed: no warehouse connected")
		}
		indexed, err := service.IsSchemaIndexed(ctx)
		if err != nil {
			return fail("Indexing failed: " + err.Error())
		}
		if indexed {
			return ok("Schema already indexed. Use /rag clear first to re-index.")
		}
		n, err := service.IndexSchema(ctx, r.schema)
		if err != nil {
			return fail("Indexing failed: " + err.Error())
		}
		return ok(fmt.Sprintf("Indexed %d tables", n))

	case "stats":
		stats, err := r.ragStats(ctx)
		if err != nil {
			return fail("RAG stats failed: " + err.Error())
		}
		return ok(stats)

	case "clear":
		if err := service.Clear(ctx); err != nil {
			return fail("RAG clear failed: " + err.Error())
		}
		return ok("RAG memory cleared")

	case "verbose":
		if subarg != "" {
			switch strings.ToLower(subarg) {
			case "on", "true", "1", "yes":
				r.settings.RAGVerbose = true
			default:
				r.settings.RAGVerbose = false
			}
		} else {
			r.settings.RAGVerbose = !r.settings.RAGVerbose
		}
		return ok("RAG verbose mode: " + onOff(r.settings.RAGVerbose))

	case "test":
		if subarg == "" {
			return fail("Usage: /rag test <question>")
		}
		result, err := r.retriever.RetrieveWithScores(ctx, subarg)
		if err != nil {
			return fail("Retrieval failed: " + err.Error())
		}
		return ok(r.retriever.FormatDebug(result))

	default:
		return fail(fmt.Sprintf("Unknown rag command: %s\nAvailable: index, stats, test, verbose, clear", sub))
	}
}

func (r *Registry) status(context.Context, string) Reply {
	lines := []string{
		"Settings:",
		"  Model: " + r.settings.Model,
		"  Output Mode: " + string(r.settings.OutputMode),
	}

	if r.sessions != nil {
		if st := r.sessions.Status(); st.Active {
			warning := ""
			if st.Warning {
				warning = " [!]"
			}
			lines = append(lines,
				"",
				"Session:",
				"  ID: "+st.ID+nameSuffix(st.Name),
				fmt.Sprintf("  Messages: %d", st.Messages),
				r.numbers.Sprintf("  Tokens: %d", st.Tokens.Total),
				fmt.Sprintf("  Context: %.1f%% used%s", st.UsedPercent, warning),
			)
		}
	}
	return ok(strings.Join(lines, "\n"))
}

func (r *Registry) help(context.Context, string) Reply {
	lines := []string{"Available Commands:"}
	for _, c := range r.commands {
		lines = append(lines, "  /"+c.Name+" - "+c.Description)
	}
	return ok(strings.Join(lines, "\n"))
}

func (r *Registry) verbose(context.Context, string) Reply {
	r.settings.Verbose = !r.settings.Verbose
	return ok("Verbose mode: " + onOff(r.settings.Verbose))
}
