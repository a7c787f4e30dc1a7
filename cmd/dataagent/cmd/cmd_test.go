package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/habiliai/dataagent/warehouse/warehousetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootParams_LoadConfig(t *testing.T) {
	params := &rootParams{Model: "gpt-4", Output: "query", Warehouse: "/tmp/warehouse.db"}

	conf, err := params.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", conf.Model.Name)
	assert.Equal(t, "query", conf.Model.OutputMode)
	assert.Equal(t, "/tmp/warehouse.db", conf.Warehouse.DSN)
}

func TestREPL(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATAAGENT_PATHS_STATE_DIR", filepath.Join(dir, "state"))
	t.Setenv("DATAAGENT_PATHS_NOTES_FILE", filepath.Join(dir, "CONTEXT.md"))
	t.Setenv("DATAAGENT_PATHS_ARTIFACTS_DIR", filepath.Join(dir, "artifacts"))
	t.Setenv("DATAAGENT_MEMORY_BACKEND", "memory")
	t.Setenv("DATAAGENT_MEMORY_EMBEDDER", "hash")
	t.Setenv("DATAAGENT_LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--warehouse", warehousetest.NewSQLite(t)})
	cmd.SetIn(strings.NewReader("y\n/output query\ncontext\n/bogus\nexit\n"))
	cmd.SetOut(&out)
	require.NoError(t, cmd.ExecuteContext(t.Context()))

	text := out.String()
	assert.Contains(t, text, "Context file created at "+filepath.Join(dir, "CONTEXT.md"))
	assert.Contains(t, text, "Output mode: query - Agent will only use submit_result")
	assert.Contains(t, text, "## Key Tables")
	assert.Contains(t, text, "ERROR: Unknown command: /bogus")
	assert.Contains(t, text, farewell)
}
