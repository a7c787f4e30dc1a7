package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/habiliai/dataagent"
	"github.com/habiliai/dataagent/command"
	"github.com/habiliai/dataagent/display"
	"github.com/habiliai/dataagent/errors"
)

const (
	promptLabel = "mission>"
	farewell    = "Transmission ended. Safe travels, astronaut."
)

const replHelp = `Available Commands
  help      Show this message
  clear     Clear conversation history
  schema    Show database schema
  context   Show current context file
  exit      Exit

Slash Commands
  /model    Change AI model
  /output   Set output mode (auto, observation, query)
  /session  Session management (new, save, load, list, clear)
  /rag      RAG memory (index, stats, test, verbose, clear)
  /status   Show current settings and session info
  /help     Show slash command help`

func runREPL(ctx context.Context, params *rootParams, in io.Reader, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agent, err := params.newAgent(ctx, dataagent.WithOutput(out))
	if err != nil {
		return err
	}
	defer func() {
		if err := agent.Close(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close agent: %v\n", err)
		}
	}()

	console := agent.Console()
	console.Title("DataAgent")
	console.Info("Ask a question about your data, or type help.")
	if mem := agent.Memory(); mem != nil {
		if stats, err := mem.Stats(ctx); err == nil && stats.Schema > 0 {
			console.Dim(fmt.Sprintf("RAG: %d schema, %d queries, %d obs", stats.Schema, stats.Queries, stats.Observations))
		} else {
			console.Dim("RAG: not indexed (run /rag index)")
		}
	}
	console.Dim("Session: " + agent.Session().ID)
	console.Print("")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	if !agent.Notes().Exists() {
		console.Info("No context file found for this data platform.")
		console.Info("The context file helps me remember insights about your data.")
		console.Prompt("Create context file? (y/n)>")
		switch answer := strings.ToLower(strings.TrimSpace(<-lines)); answer {
		case "y", "yes":
			if err := agent.Notes().Create(); err != nil {
				console.Error(err.Error())
			} else {
				console.Success("Context file created at " + agent.Notes().Path())
			}
		default:
			console.Info("Continuing without context file.")
		}
	}

	for {
		console.Prompt(promptLabel)

		var line string
		select {
		case <-ctx.Done():
			console.Print("")
			console.Info(display.Divider)
			console.Info("Transmission interrupted. Safe travels, astronaut.")
			return nil
		case l, ok := <-lines:
			if !ok {
				console.Print("")
				console.Info(display.Divider)
				console.Info(farewell)
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		if done := handleLine(ctx, agent, console, line); done {
			return nil
		}
	}
}

// handleLine runs one REPL input and reports whether the REPL should stop.
func handleLine(ctx context.Context, agent *dataagent.Agent, console *display.Console, line string) bool {
	if command.IsCommand(line) {
		reply := agent.Execute(ctx, line)
		if reply.OK {
			console.Success(reply.Text)
		} else {
			console.Error(reply.Text)
		}
		return false
	}

	switch strings.ToLower(line) {
	case "exit", "quit", "q":
		console.Info(display.Divider)
		console.Info(farewell)
		return true
	case "help":
		console.Print(replHelp)
		return false
	case "clear":
		agent.Session().ClearHistory()
		console.Success("Conversation history cleared.")
		return false
	case "schema":
		schema, err := agent.Warehouse().FullSchema(ctx)
		if err != nil {
			console.Error(err.Error())
		} else {
			console.Print(schema)
		}
		return false
	case "context":
		if !agent.Notes().Exists() {
			console.Info("No context file exists.")
			return false
		}
		content, err := agent.Notes().Content()
		if err != nil {
			console.Error(err.Error())
		} else {
			console.Print(content)
		}
		return false
	}

	console.Thinking("Thinking...")
	if _, err := agent.Ask(ctx, line); err != nil && !errors.Is(err, errors.ErrRoundLimit) {
		console.Error(err.Error())
	}
	return false
}
