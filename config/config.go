package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/habiliai/dataagent/errors"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

type Config struct {
	Log        LogConfig            `yaml:"log"`
	Model      ModelConfig          `yaml:"model"`
	Warehouse  WarehouseConfig      `yaml:"warehouse"`
	Memory     MemoryConfig         `yaml:"memory"`
	Retrieval  RetrievalConfig      `yaml:"retrieval"`
	Agent      AgentConfig          `yaml:"agent"`
	Paths      PathsConfig          `yaml:"paths"`
	Platform   PlatformConfig       `yaml:"platform"`
	MCPServers map[string]MCPServer `yaml:"mcp_servers"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error
	// Default: info
	Level string `yaml:"level"`

	// Handler selects the slog handler: "json" or "default" (colored text)
	// Default: default
	Handler string `yaml:"handler"`

	// Verbose keeps long span attributes in trace logs
	Verbose bool `yaml:"verbose"`
}

type ModelConfig struct {
	// Name is the reasoning model, e.g. gpt-4o or claude-sonnet-4-20250514
	// Default: gpt-4o
	Name string `yaml:"name"`

	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	// MaxTokens bounds a single completion
	// Default: 4096
	MaxTokens int `yaml:"max_tokens"`

	// Timeout applies to each model call
	// Default: 2m
	Timeout time.Duration `yaml:"timeout"`

	// OutputMode is auto, observation or query
	// Default: auto
	OutputMode string `yaml:"output_mode"`
}

type WarehouseConfig struct {
	// Driver is sqlite, postgres or mysql
	// Default: sqlite
	Driver string `yaml:"driver"`

	// DSN is a file path for sqlite and a connection string otherwise
	DSN string `yaml:"dsn"`

	// QueryTimeout applies to each statement
	// Default: 60s
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

type AgentConfig struct {
	// MaxRounds caps model calls for a single question
	// Default: 25
	MaxRounds int `yaml:"max_rounds"`

	// QuestionTimeout caps the wall clock spent on a single question
	// Default: 10m
	QuestionTimeout time.Duration `yaml:"question_timeout"`

	// ToolTimeout applies to each tool dispatch
	// Default: 2m
	ToolTimeout time.Duration `yaml:"tool_timeout"`

	// MaxRowsForModel limits the rows of a query result fed back to the model
	// Default: 500
	MaxRowsForModel int `yaml:"max_rows_for_model"`

	// ContextWarningPercent is the context window usage that triggers a warning
	// Default: 80
	ContextWarningPercent float64 `yaml:"context_warning_percent"`

	// CodeMaxSteps bounds the interpreter steps of one code execution
	// Default: 50000000
	CodeMaxSteps uint64 `yaml:"code_max_steps"`
}

type PathsConfig struct {
	// StateDir holds sessions.db and memory.db
	// Default: ~/.dataagent
	StateDir string `yaml:"state_dir"`

	// NotesFile is the markdown notes file shared with the model
	// Default: CONTEXT.md
	NotesFile string `yaml:"notes_file"`

	// ArtifactsDir receives rendered visualizations
	// Default: artifacts
	ArtifactsDir string `yaml:"artifacts_dir"`
}

type PlatformConfig struct {
	DagsDir       string `yaml:"dags_dir"`
	ModelsDir     string `yaml:"models_dir"`
	DashboardsDir string `yaml:"dashboards_dir"`
}

type MCPServer struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

func NewConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:   "info",
			Handler: "default",
		},
		Model: ModelConfig{
			Name:       DefaultModel,
			MaxTokens:  4096,
			Timeout:    2 * time.Minute,
			OutputMode: "auto",
		},
		Warehouse: WarehouseConfig{
			Driver:       "sqlite",
			QueryTimeout: time.Minute,
		},
		Memory:    *NewMemoryConfig(),
		Retrieval: *NewRetrievalConfig(),
		Agent: AgentConfig{
			MaxRounds:             25,
			QuestionTimeout:       10 * time.Minute,
			ToolTimeout:           2 * time.Minute,
			MaxRowsForModel:       500,
			ContextWarningPercent: 80,
			CodeMaxSteps:          50_000_000,
		},
		Paths: PathsConfig{
			StateDir:     "~/.dataagent",
			NotesFile:    "CONTEXT.md",
			ArtifactsDir: "artifacts",
		},
		Platform: PlatformConfig{
			DagsDir:       "airflow/dags",
			ModelsDir:     "dbt/models",
			DashboardsDir: "evidence/pages",
		},
		MCPServers: map[string]MCPServer{},
	}
}

// Load builds a Config from defaults, an optional .env file, an optional YAML
// file and environment variables, in that order of precedence.
func Load(file string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, errors.Wrapf(err, "failed to load .env")
		}
	}

	conf := NewConfig()
	if file != "" {
		yamlBytes, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read file %s", file)
		}
		if err := yaml.Unmarshal(yamlBytes, conf); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal file %s", file)
		}
	}

	applyEnv(conf)
	conf.expandPaths()

	return conf, nil
}

func (c *Config) Validate() error {
	if !lo.Contains([]string{"sqlite", "postgres", "mysql"}, c.Warehouse.Driver) {
		return errors.Wrapf(errors.ErrInvalidConfig, "unsupported warehouse driver %q", c.Warehouse.Driver)
	}
	if c.Warehouse.DSN == "" {
		return errors.Wrapf(errors.ErrInvalidConfig, "warehouse dsn is required")
	}
	if !lo.Contains([]string{"auto", "observation", "query"}, c.Model.OutputMode) {
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown output mode %q", c.Model.OutputMode)
	}
	if c.Agent.MaxRounds <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "max_rounds must be positive")
	}
	if err := c.Memory.Validate(); err != nil {
		return err
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	return nil
}

// SessionsPath is the sqlite file holding saved sessions.
func (c *Config) SessionsPath() string {
	return filepath.Join(c.Paths.StateDir, "sessions.db")
}

func (c *Config) expandPaths() {
	c.Paths.StateDir = ExpandHome(c.Paths.StateDir)
	c.Paths.NotesFile = ExpandHome(c.Paths.NotesFile)
	c.Paths.ArtifactsDir = ExpandHome(c.Paths.ArtifactsDir)
	if c.Memory.Path == "" {
		c.Memory.Path = filepath.Join(c.Paths.StateDir, "memory.db")
	}
	c.Memory.Path = ExpandHome(c.Memory.Path)
	if c.Warehouse.Driver == "sqlite" {
		c.Warehouse.DSN = ExpandHome(c.Warehouse.DSN)
	}
}

func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
