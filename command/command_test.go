package command_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/habiliai/dataagent/command"
	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/engine"
	"github.com/habiliai/dataagent/llm"
	"github.com/habiliai/dataagent/memory"
	"github.com/habiliai/dataagent/session"
	"github.com/habiliai/dataagent/tool"
	"github.com/habiliai/dataagent/warehouse"
	"github.com/habiliai/dataagent/warehouse/warehousetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessions(t *testing.T) *session.Manager {
	t.Helper()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m, err := session.NewManager(filepath.Join(t.TempDir(), "sessions.db"), session.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newRegistry(t *testing.T, opts ...command.Option) *command.Registry {
	t.Helper()
	return command.NewRegistry(command.NewSettings(config.NewConfig()), opts...)
}

func TestExecute(t *testing.T) {
	r := newRegistry(t)

	t.Run("given plain text, when executing, then it is rejected", func(t *testing.T) {
		assert.False(t, command.IsCommand("how many orders?"))
		assert.Equal(t, command.Reply{Text: "Not a slash command"}, r.Execute(t.Context(), "how many orders?"))
	})

	t.Run("given an unknown command, when executing, then it is named", func(t *testing.T) {
		assert.True(t, command.IsCommand("  /nope"))
		assert.Equal(t, command.Reply{Text: "Unknown command: /nope"}, r.Execute(t.Context(), "/NOPE"))
	})

	t.Run("given /help, when executing, then every command is listed", func(t *testing.T) {
		reply := r.Execute(t.Context(), "/help")
		require.True(t, reply.OK)
		assert.Equal(t, strings.Join([]string{
			"Available Commands:",
			"  /model - Change the AI model",
			"  /output - Set output mode constraint",
			"  /session - Session management",
			"  /rag - RAG memory management",
			"  /status - Show current settings and session",
			"  /help - Show available commands",
			"  /verbose - Toggle verbose mode (show full prompts)",
		}, "\n"), reply.Text)
	})
}

func TestModelAndOutput(t *testing.T) {
	sessions := newSessions(t)
	sess := sessions.Start("gpt-4o")
	r := newRegistry(t, command.WithSessions(sessions))

	reply := r.Execute(t.Context(), "/model")
	assert.True(t, reply.OK)
	assert.Contains(t, reply.Text, "  gpt-4o  [current]\n  gpt-4o-mini\n")
	assert.True(t, strings.HasSuffix(reply.Text, "\n\nUsage: /model <model-name>"))

	reply = r.Execute(t.Context(), "/model gpt-5-ultra")
	assert.False(t, reply.OK)
	assert.True(t, strings.HasPrefix(reply.Text, "Unknown model: gpt-5-ultra\nAvailable: gpt-4o, gpt-4o-mini"))

	reply = r.Execute(t.Context(), "/model gpt-4")
	assert.Equal(t, command.Reply{OK: true, Text: "Model set to: gpt-4"}, reply)
	assert.Equal(t, "gpt-4", r.Settings().Model)
	assert.Equal(t, "gpt-4", sess.Model)
	assert.Equal(t, 8192, sess.ContextLimit)

	reply = r.Execute(t.Context(), "/output")
	assert.Equal(t, "Output modes:\n  auto  [current]\n  observation\n  query\n\nUsage: /output <mode>", reply.Text)

	reply = r.Execute(t.Context(), "/output Query")
	assert.Equal(t, command.Reply{OK: true, Text: "Output mode: query - Agent will only use submit_result"}, reply)

	reply = r.Execute(t.Context(), "/output table")
	assert.Equal(t, command.Reply{Text: "Unknown mode: table\nAvailable: auto, observation, query"}, reply)

	assert.Equal(t, engine.Settings{Model: "gpt-4", OutputMode: tool.ModeQuery}, r.Settings().Engine())
}

func TestSession(t *testing.T) {
	t.Run("given no manager, when using /session, then it is unavailable", func(t *testing.T) {
		r := newRegistry(t)
		assert.Equal(t, command.Reply{Text: "Session manager not available"}, r.Execute(t.Context(), "/session list"))
	})

	sessions := newSessions(t)
	r := newRegistry(t, command.WithSessions(sessions))

	assert.Equal(t, command.Reply{OK: true, Text: "No active session"}, r.Execute(t.Context(), "/session"))
	assert.Equal(t, command.Reply{Text: "No active session to save"}, r.Execute(t.Context(), "/session save"))
	assert.Equal(t, command.Reply{OK: true, Text: "No saved sessions"}, r.Execute(t.Context(), "/session list"))

	reply := r.Execute(t.Context(), "/session new")
	require.True(t, reply.OK)
	sess := sessions.Current()
	assert.Equal(t, "New session started: "+sess.ID, reply.Text)

	sess.AddMessage(llm.UserMessage("How many orders?"), llm.AssistantMessage("Three."))
	sess.UpdateTokens(1200, 300)

	reply = r.Execute(t.Context(), "/session")
	assert.Equal(t, "Session: "+sess.ID+"\n  Model: gpt-4o\n  Messages: 1\n  Tokens: 1,500 (1,200 prompt, 300 completion)\n  Context: 1.2% of 128,000\n  Duration: 0s", reply.Text)

	reply = r.Execute(t.Context(), "/session save quarterly review")
	assert.Equal(t, command.Reply{OK: true, Text: "Session saved: " + sess.ID + " (quarterly review)"}, reply)

	reply = r.Execute(t.Context(), "/session list")
	assert.Equal(t, "Saved Sessions:\n  "+sess.ID+" (quarterly review) - 1 msgs, 1,500 tokens [paused]", reply.Text)

	reply = r.Execute(t.Context(), "/session clear")
	assert.Equal(t, command.Reply{OK: true, Text: "Session history cleared"}, reply)
	assert.Empty(t, sess.History())

	assert.Equal(t, command.Reply{Text: "Usage: /session load <id-or-name>"}, r.Execute(t.Context(), "/session load"))
	assert.Equal(t, command.Reply{Text: "No session found matching: weekly"}, r.Execute(t.Context(), "/session load weekly"))

	reply = r.Execute(t.Context(), "/session load quarterly")
	assert.Equal(t, command.Reply{OK: true, Text: "Session loaded: " + sess.ID + " (quarterly review)"}, reply)
	assert.Len(t, sessions.Current().History(), 2)

	reply = r.Execute(t.Context(), "/status")
	assert.Equal(t, "Settings:\n  Model: gpt-4o\n  Output Mode: auto\n\nSession:\n  ID: "+sess.ID+" (quarterly review)\n  Messages: 1\n  Tokens: 1,500\n  Context: 1.2% used", reply.Text)

	reply = r.Execute(t.Context(), "/session rename x")
	assert.Equal(t, command.Reply{Text: "Unknown session command: rename\nAvailable: new, save, load, list, clear"}, reply)
}

func TestRAG(t *testing.T) {
	t.Run("given memory is disabled, when using /rag, then it fails", func(t *testing.T) {
		r := newRegistry(t)
		assert.False(t, r.Execute(t.Context(), "/rag").OK)
	})

	exec, err := warehouse.Open(t.Context(), config.WarehouseConfig{Driver: "sqlite", DSN: warehousetest.NewSQLite(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })

	service := memory.NewService(memory.NewInMemoryStore(), memory.NewHashEmbedder(64))
	retriever := memory.NewRetriever(service, *config.NewRetrievalConfig())
	r := newRegistry(t, command.WithMemory(retriever, exec))

	reply := r.Execute(t.Context(), "/rag")
	assert.Equal(t, "RAG Memory:\n  Schema items: 0\n  Query history: 0\n  Observations: 0\n  Verbose mode: off\n\nCommands: /rag index, /rag test <question>, /rag verbose, /rag clear", reply.Text)

	assert.Equal(t, command.Reply{OK: true, Text: "Indexed 2 tables"}, r.Execute(t.Context(), "/rag index"))
	assert.Equal(t, command.Reply{OK: true, Text: "Schema already indexed. Use /rag clear first to re-index."}, r.Execute(t.Context(), "/rag index"))

	reply = r.Execute(t.Context(), "/rag stats")
	assert.True(t, strings.HasPrefix(reply.Text, "RAG Memory:\n  Schema items: 9\n"), reply.Text)

	reply = r.Execute(t.Context(), "/rag test total order amount")
	assert.True(t, reply.OK)
	assert.True(t, strings.HasPrefix(reply.Text, "RAG Retrieval Results:"))
	assert.Contains(t, reply.Text, "main.orders")

	assert.Equal(t, command.Reply{Text: "Usage: /rag test <question>"}, r.Execute(t.Context(), "/rag test"))

	assert.Equal(t, "RAG verbose mode: on", r.Execute(t.Context(), "/rag verbose").Text)
	assert.True(t, r.Settings().RAGVerbose)
	assert.True(t, r.Settings().Engine().ShowRetrieval)
	assert.Equal(t, "RAG verbose mode: off", r.Execute(t.Context(), "/rag verbose no").Text)

	assert.Equal(t, command.Reply{OK: true, Text: "RAG memory cleared"}, r.Execute(t.Context(), "/rag clear"))
	stats, err := service.Stats(t.Context())
	require.NoError(t, err)
	assert.Zero(t, stats.Schema)

	assert.Equal(t, command.Reply{Text: "Unknown rag command: purge\nAvailable: index, stats, test, verbose, clear"}, r.Execute(t.Context(), "/rag purge"))
}

func TestVerbose(t *testing.T) {
	r := newRegistry(t)
	assert.Equal(t, command.Reply{OK: true, Text: "Verbose mode: on"}, r.Execute(t.Context(), "/verbose"))
	assert.True(t, r.Settings().Verbose)
	assert.Equal(t, command.Reply{OK: true, Text: "Verbose mode: off"}, r.Execute(t.Context(), "/verbose"))
}

func TestComplete(t *testing.T) {
	r := newRegistry(t)

	assert.Nil(t, r.Complete("model"))
	assert.Equal(t, []command.Completion{
		{Text: "/session", Description: "Session management"},
		{Text: "/status", Description: "Show current settings and session"},
	}, r.Complete("/s"))
	assert.Equal(t, []command.Completion{
		{Text: "/output observation"},
	}, r.Complete("/output OB"))
	assert.Nil(t, r.Complete("/nope x"))
}
