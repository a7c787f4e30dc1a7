// Package llmtest provides a scripted Model for exercising the engine without a provider.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/habiliai/dataagent/llm"
)

// Step produces the next reply from the request the model received.
type Step func(req llm.Request) (*llm.Response, error)

// ScriptedModel replays Steps in order and records every request.
type ScriptedModel struct {
	mu       sync.Mutex
	steps    []Step
	requests []llm.Request
}

func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

func (m *ScriptedModel) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := req
	snapshot.Messages = append([]llm.Message(nil), req.Messages...)
	m.requests = append(m.requests, snapshot)
	if len(m.steps) == 0 {
		return nil, fmt.Errorf("llmtest: script exhausted after %d requests", len(m.requests))
	}

	step := m.steps[0]
	m.steps = m.steps[1:]
	return step(snapshot)
}

// Append queues more steps, e.g. for a second question.
func (m *ScriptedModel) Append(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

func (m *ScriptedModel) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

func (m *ScriptedModel) LastRequest() llm.Request {
	reqs := m.Requests()
	if len(reqs) == 0 {
		return llm.Request{}
	}
	return reqs[len(reqs)-1]
}

// Call returns a step that requests a single tool call.
func Call(name string, args any) Step {
	return Calls(Invocation{Name: name, Args: args})
}

type Invocation struct {
	Name string
	Args any
}

// Calls returns a step that requests several tool calls in one batch.
func Calls(invocations ...Invocation) Step {
	return func(req llm.Request) (*llm.Response, error) {
		calls := make([]llm.ToolCall, 0, len(invocations))
		for i, inv := range invocations {
			var raw string
			switch a := inv.Args.(type) {
			case string:
				raw = a
			default:
				b, err := json.Marshal(a)
				if err != nil {
					return nil, err
				}
				raw = string(b)
			}
			calls = append(calls, llm.ToolCall{
				ID:        fmt.Sprintf("call_%d_%d", len(req.Messages), i),
				Name:      inv.Name,
				Arguments: raw,
			})
		}
		return &llm.Response{
			Reply: llm.ToolCallBatch{Calls: calls},
			Usage: llm.Usage{PromptTokens: 100, CompletionTokens: 20},
		}, nil
	}
}

// Text returns a step that answers with plain text.
func Text(text string) Step {
	return func(llm.Request) (*llm.Response, error) {
		return &llm.Response{
			Reply: llm.TextOnly{Text: text},
			Usage: llm.Usage{PromptTokens: 100, CompletionTokens: 10},
		}, nil
	}
}

// Fail returns a step that fails the model call.
func Fail(err error) Step {
	return func(llm.Request) (*llm.Response, error) {
		return nil, err
	}
}

// ToolNames lists the tool names offered in req.
func ToolNames(req llm.Request) []string {
	names := make([]string, 0, len(req.Tools))
	for _, t := range req.Tools {
		names = append(names, t.Name)
	}
	return names
}
