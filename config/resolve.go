package config

import (
	"strings"

	"github.com/spf13/viper"
)

// applyEnv overrides conf with DATAAGENT_* variables and the provider key variables.
func applyEnv(conf *Config) {
	v := viper.New()
	v.SetEnvPrefix("DATAAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("anthropic_api_key", "ANTHROPIC_API_KEY")

	setString(v, "log.level", &conf.Log.Level)
	setString(v, "log.handler", &conf.Log.Handler)
	setBool(v, "log.verbose", &conf.Log.Verbose)
	setString(v, "model.name", &conf.Model.Name)
	setString(v, "model.output_mode", &conf.Model.OutputMode)
	setString(v, "openai_api_key", &conf.Model.OpenAIAPIKey)
	setString(v, "anthropic_api_key", &conf.Model.AnthropicAPIKey)
	setString(v, "warehouse.driver", &conf.Warehouse.Driver)
	setString(v, "warehouse.dsn", &conf.Warehouse.DSN)
	setString(v, "memory.backend", &conf.Memory.Backend)
	setString(v, "memory.embedder", &conf.Memory.Embedder)
	setString(v, "memory.path", &conf.Memory.Path)
	setString(v, "paths.state_dir", &conf.Paths.StateDir)
	setString(v, "paths.notes_file", &conf.Paths.NotesFile)
	setString(v, "paths.artifacts_dir", &conf.Paths.ArtifactsDir)
	if v.IsSet("agent.max_rounds") {
		if n := v.GetInt("agent.max_rounds"); n > 0 {
			conf.Agent.MaxRounds = n
		}
	}
}

func setString(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}

func setBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}
