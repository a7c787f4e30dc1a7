package engine

import (
	"github.com/habiliai/dataagent/tool"
)

// Display receives everything the user sees while a question is answered.
type Display interface {
	ToolCall(name, summary string)
	ToolResult(name, text string)
	ToolError(name, text string)
	Reasoning(text string)
	Message(text string)
	ComputedAnswer(answer *tool.ComputedAnswer)
	Observation(answer *tool.ObservationAnswer)
	Artifact(out *tool.ArtifactOutput)
	Retrieval(summary string)
	Warning(msg string)
	Error(msg string)
}

type NopDisplay struct{}

func (NopDisplay) ToolCall(string, string)             {}
func (NopDisplay) ToolResult(string, string)           {}
func (NopDisplay) ToolError(string, string)            {}
func (NopDisplay) Reasoning(string)                    {}
func (NopDisplay) Message(string)                      {}
func (NopDisplay) ComputedAnswer(*tool.ComputedAnswer) {}
func (NopDisplay) Observation(*tool.ObservationAnswer) {}
func (NopDisplay) Artifact(*tool.ArtifactOutput)       {}
func (NopDisplay) Retrieval(string)                    {}
func (NopDisplay) Warning(string)                      {}
func (NopDisplay) Error(string)                        {}
