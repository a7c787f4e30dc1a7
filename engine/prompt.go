package engine

import (
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/tool"
)

var (
	//go:embed data/instructions/system.md.tmpl
	systemInst     string
	systemInstTmpl = template.Must(template.New("system").Funcs(funcMap()).Parse(systemInst))
)

func funcMap() template.FuncMap {
	return sprig.TxtFuncMap()
}

type (
	PromptTool struct {
		Name    string
		Summary string
	}

	SystemPromptValues struct {
		Schema    string
		Tools     []PromptTool
		ToolNames []string
		Terminal  []string
	}
)

func buildPromptValues(schema string, defs []tool.Definition) *SystemPromptValues {
	values := &SystemPromptValues{Schema: schema}
	for _, def := range defs {
		summary, _, _ := strings.Cut(def.Description, "\n")
		values.Tools = append(values.Tools, PromptTool{Name: def.Name, Summary: summary})
		values.ToolNames = append(values.ToolNames, def.Name)
		if def.Kind == tool.KindTerminal {
			values.Terminal = append(values.Terminal, def.Name)
		}
	}
	return values
}

// SystemPrompt renders the instructions for mode followed by the mode
// directive and the retrieved memory block.
func (e *Engine) SystemPrompt(ctx context.Context, mode tool.OutputMode, retrieved string) (string, error) {
	values := buildPromptValues(e.schemaContext(ctx), e.registry.Enabled(mode))

	var buf strings.Builder
	if err := systemInstTmpl.Execute(&buf, values); err != nil {
		return "", errors.Wrapf(err, "failed to render system prompt")
	}
	buf.WriteString(mode.Directive())
	if retrieved != "" {
		buf.WriteString("\n\n")
		buf.WriteString(retrieved)
	}
	return buf.String(), nil
}
