package dataagent_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/habiliai/dataagent"
	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/engine"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/habiliai/dataagent/llm/llmtest"
	"github.com/habiliai/dataagent/tool"
	"github.com/habiliai/dataagent/warehouse/warehousetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	conf := config.NewConfig()
	conf.Warehouse.DSN = warehousetest.NewSQLite(t)
	conf.Memory.Backend = "memory"
	conf.Memory.Embedder = "hash"
	conf.Memory.Dimension = 128
	conf.Paths.StateDir = filepath.Join(dir, "state")
	conf.Paths.NotesFile = filepath.Join(dir, "CONTEXT.md")
	conf.Paths.ArtifactsDir = filepath.Join(dir, "artifacts")
	conf.Platform = config.PlatformConfig{}
	return conf
}

func TestNew_InvalidConfig(t *testing.T) {
	conf := config.NewConfig()
	conf.Warehouse.DSN = ""

	_, err := dataagent.New(t.Context(), dataagent.WithConfig(conf), dataagent.WithLogger(mylog.Discard()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warehouse dsn is required")
}

func TestAgent_Ask(t *testing.T) {
	conf := newConfig(t)
	model := llmtest.NewScriptedModel(
		llmtest.Call(tool.SubmitResult, map[string]any{
			"inputs":      map[string]string{"orders": "SELECT amount FROM orders"},
			"function":    `result = orders["amount"].sum()`,
			"explanation": "Sum of every order amount",
		}),
	)

	var out bytes.Buffer
	agent, err := dataagent.New(t.Context(),
		dataagent.WithConfig(conf),
		dataagent.WithLogger(mylog.Discard()),
		dataagent.WithModel(model),
		dataagent.WithOutput(&out),
	)
	require.NoError(t, err)

	n, err := agent.IndexSchema(t.Context(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = agent.IndexSchema(t.Context(), false)
	require.NoError(t, err)
	assert.Zero(t, n)

	outcome, err := agent.Ask(t.Context(), "What is the total order amount?")
	require.NoError(t, err)
	assert.Equal(t, engine.StateDone, outcome.State)
	assert.Equal(t, tool.SubmitResult, outcome.Tool)
	assert.Contains(t, out.String(), "60")

	req := model.LastRequest()
	assert.Contains(t, req.System, "### Relevant Schema")
	assert.Contains(t, llmtest.ToolNames(req), tool.ReadContext)
	assert.Contains(t, llmtest.ToolNames(req), tool.InspectPlatform)

	reply := agent.Execute(t.Context(), "/verbose")
	assert.Equal(t, "Verbose mode: on", reply.Text)
	assert.True(t, agent.Console().Verbose())

	sessionID := agent.Session().ID
	require.NoError(t, agent.Close(t.Context()))

	reopened, err := dataagent.New(t.Context(),
		dataagent.WithConfig(conf),
		dataagent.WithLogger(mylog.Discard()),
		dataagent.WithModel(model),
		dataagent.WithOutput(&out),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close(t.Context()) })

	reply = reopened.Execute(t.Context(), "/session list")
	assert.True(t, strings.HasPrefix(reply.Text, "Saved Sessions:\n  "+sessionID+" - 1 msgs"), reply.Text)
}
