package llm

import (
	"context"

	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/errors"
)

// Router sends a request to the provider that serves req.Model.
type Router struct {
	openai    Model
	anthropic Model
}

func NewRouter(conf config.ModelConfig) *Router {
	r := &Router{}
	if conf.OpenAIAPIKey != "" {
		r.openai = NewOpenAI(conf.OpenAIAPIKey, conf.Timeout)
	}
	if conf.AnthropicAPIKey != "" {
		r.anthropic = NewAnthropic(conf.AnthropicAPIKey, conf.Timeout)
	}
	return r
}

func (r *Router) Generate(ctx context.Context, req Request) (*Response, error) {
	m := r.openai
	provider := "openai"
	if config.IsAnthropicModel(req.Model) {
		m = r.anthropic
		provider = "anthropic"
	}
	if m == nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "no %s api key configured for model %s", provider, req.Model)
	}
	return m.Generate(ctx, req)
}

var _ Model = (*Router)(nil)
