package config

import (
	"time"

	"github.com/habiliai/dataagent/errors"
)

type MemoryConfig struct {
	// Enabled turns retrieval and indexing on
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend is "sqlite" (sqlite-vec, persistent) or "memory"
	// Default: sqlite
	Backend string `yaml:"backend"`

	// Path of the sqlite-vec database
	// Default: <state_dir>/memory.db
	Path string `yaml:"path"`

	// Embedder is "openai" or "hash" (offline, deterministic)
	// Default: openai
	Embedder string `yaml:"embedder"`

	// EmbeddingModel names the OpenAI embedding model
	// Default: text-embedding-3-small
	EmbeddingModel string `yaml:"embedding_model"`

	// Dimension of the embedding vectors; must match the embedder
	// Default: 1536
	Dimension int `yaml:"dimension"`

	// SampleRows is the number of sample rows stored with each indexed table
	// Default: 3
	SampleRows int `yaml:"sample_rows"`

	// Timeout applies to each embedding or indexing call
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

func NewMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		Enabled:        true,
		Backend:        "sqlite",
		Embedder:       "openai",
		EmbeddingModel: "text-embedding-3-small",
		Dimension:      1536,
		SampleRows:     3,
		Timeout:        30 * time.Second,
	}
}

func (c *MemoryConfig) Validate() error {
	switch c.Backend {
	case "sqlite", "memory":
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown memory backend %q", c.Backend)
	}
	switch c.Embedder {
	case "openai", "hash":
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown embedder %q", c.Embedder)
	}
	if c.Dimension <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "embedding dimension must be positive")
	}
	return nil
}

type RetrievalConfig struct {
	// Per-collection result limits
	// Default: 5 / 5 / 3
	SchemaLimit      int `yaml:"schema_limit"`
	QueryLimit       int `yaml:"query_limit"`
	ObservationLimit int `yaml:"observation_limit"`

	// Per-section budgets in estimated tokens
	// Default: 2000 / 1500 / 500
	SchemaTokenBudget      int `yaml:"schema_token_budget"`
	QueryTokenBudget       int `yaml:"query_token_budget"`
	ObservationTokenBudget int `yaml:"observation_token_budget"`

	// CharsPerToken converts token budgets into characters
	// Default: 4
	CharsPerToken int `yaml:"chars_per_token"`

	// DistanceScale maps a distance d to similarity max(0, 1 - d/scale)
	// Default: 2
	DistanceScale float64 `yaml:"distance_scale"`

	// ObservationMaxChars shortens long insights in the prompt
	// Default: 200
	ObservationMaxChars int `yaml:"observation_max_chars"`

	// ResultSummaryChars shortens past query results in the prompt
	// Default: 100
	ResultSummaryChars int `yaml:"result_summary_chars"`
}

func NewRetrievalConfig() *RetrievalConfig {
	return &RetrievalConfig{
		SchemaLimit:            5,
		QueryLimit:             5,
		ObservationLimit:       3,
		SchemaTokenBudget:      2000,
		QueryTokenBudget:       1500,
		ObservationTokenBudget: 500,
		CharsPerToken:          4,
		DistanceScale:          2,
		ObservationMaxChars:    200,
		ResultSummaryChars:     100,
	}
}

func (c *RetrievalConfig) Validate() error {
	if c.CharsPerToken <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "chars_per_token must be positive")
	}
	if c.DistanceScale <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "distance_scale must be positive")
	}
	if c.SchemaTokenBudget < 0 || c.QueryTokenBudget < 0 || c.ObservationTokenBudget < 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "token budgets must not be negative")
	}
	return nil
}
