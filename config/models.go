package config

import "strings"

const (
	DefaultModel        = "gpt-4o"
	DefaultContextLimit = 128000
)

var AvailableModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-4",
	"gpt-3.5-turbo",
	"o1",
	"o1-mini",
	"o1-preview",
	"claude-sonnet-4-20250514",
	"claude-3-5-haiku-latest",
}

var contextLimits = map[string]int{
	"gpt-4o":                   128000,
	"gpt-4o-mini":              128000,
	"gpt-4-turbo":              128000,
	"gpt-4":                    8192,
	"gpt-3.5-turbo":            16385,
	"o1":                       200000,
	"o1-mini":                  128000,
	"o1-preview":               128000,
	"claude-sonnet-4-20250514": 200000,
	"claude-3-5-haiku-latest":  200000,
}

// ContextLimit returns the context window of model in tokens.
func ContextLimit(model string) int {
	if limit, ok := contextLimits[model]; ok {
		return limit
	}
	if IsAnthropicModel(model) {
		return 200000
	}
	return DefaultContextLimit
}

func IsAnthropicModel(model string) bool {
	return strings.HasPrefix(model, "claude")
}
