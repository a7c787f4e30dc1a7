package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	conf := config.NewConfig()

	assert.Equal(t, "gpt-4o", conf.Model.Name)
	assert.Equal(t, "auto", conf.Model.OutputMode)
	assert.Equal(t, 25, conf.Agent.MaxRounds)
	assert.Equal(t, 500, conf.Agent.MaxRowsForModel)
	assert.Equal(t, 5, conf.Retrieval.SchemaLimit)
	assert.Equal(t, 3, conf.Retrieval.ObservationLimit)
	assert.Equal(t, 2000, conf.Retrieval.SchemaTokenBudget)
	assert.Equal(t, 1500, conf.Retrieval.QueryTokenBudget)
	assert.Equal(t, 500, conf.Retrieval.ObservationTokenBudget)
	assert.Equal(t, 4, conf.Retrieval.CharsPerToken)
	assert.InDelta(t, 2.0, conf.Retrieval.DistanceScale, 1e-9)
}

func TestLoad(t *testing.T) {
	t.Run("given a yaml file and env overrides, when loading, then env wins over file", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "dataagent.yaml")
		require.NoError(t, os.WriteFile(file, []byte(`
model:
  name: gpt-4o-mini
  output_mode: observation
warehouse:
  driver: sqlite
  dsn: /tmp/warehouse.db
agent:
  max_rounds: 7
  tool_timeout: 30s
retrieval:
  query_token_budget: 300
mcp_servers:
  files:
    command: mcp-files
    args: ["--root", "."]
`), 0o644))

		t.Setenv("DATAAGENT_MODEL_NAME", "o1")
		t.Setenv("OPENAI_API_KEY", "sk-test")

		conf, err := config.Load(file)
		require.NoError(t, err)

		assert.Equal(t, "o1", conf.Model.Name)
		assert.Equal(t, "observation", conf.Model.OutputMode)
		assert.Equal(t, "sk-test", conf.Model.OpenAIAPIKey)
		assert.Equal(t, "/tmp/warehouse.db", conf.Warehouse.DSN)
		assert.Equal(t, 7, conf.Agent.MaxRounds)
		assert.Equal(t, 30*time.Second, conf.Agent.ToolTimeout)
		assert.Equal(t, 300, conf.Retrieval.QueryTokenBudget)
		assert.Equal(t, 2000, conf.Retrieval.SchemaTokenBudget)
		assert.Equal(t, []string{"--root", "."}, conf.MCPServers["files"].Args)
		require.NoError(t, conf.Validate())
	})

	t.Run("given a missing file, when loading, then an error is returned", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("given no warehouse dsn, when validating, then invalid config", func(t *testing.T) {
		conf := config.NewConfig()
		err := conf.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
	})

	t.Run("given an unknown output mode, when validating, then invalid config", func(t *testing.T) {
		conf := config.NewConfig()
		conf.Warehouse.DSN = "w.db"
		conf.Model.OutputMode = "chart"
		assert.ErrorIs(t, conf.Validate(), errors.ErrInvalidConfig)
	})

	t.Run("given a zero distance scale, when validating, then invalid config", func(t *testing.T) {
		conf := config.NewConfig()
		conf.Warehouse.DSN = "w.db"
		conf.Retrieval.DistanceScale = 0
		assert.ErrorIs(t, conf.Validate(), errors.ErrInvalidConfig)
	})
}

func TestContextLimit(t *testing.T) {
	assert.Equal(t, 8192, config.ContextLimit("gpt-4"))
	assert.Equal(t, 16385, config.ContextLimit("gpt-3.5-turbo"))
	assert.Equal(t, 200000, config.ContextLimit("o1"))
	assert.Equal(t, 200000, config.ContextLimit("claude-opus-4"))
	assert.Equal(t, config.DefaultContextLimit, config.ContextLimit("local-llama"))
}
