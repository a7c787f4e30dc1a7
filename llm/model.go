package llm

import (
	"context"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation history. Assistant messages may carry
// only ToolCalls; tool messages answer exactly one call through ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

func ToolResultMessage(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: call.ID, Name: call.Name}
}

// ToolSpec is the model-facing description of a tool.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Request struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int
}

// Reply is either a ToolCallBatch or a TextOnly answer.
type Reply interface {
	isReply()
}

// ToolCallBatch asks the caller to run Calls in order. Text is any reasoning
// the model emitted next to the calls.
type ToolCallBatch struct {
	Text  string
	Calls []ToolCall
}

type TextOnly struct {
	Text string
}

func (ToolCallBatch) isReply() {}
func (TextOnly) isReply()      {}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

type Response struct {
	Reply Reply
	Usage Usage
}

// Model is a reasoning model that may request tool calls.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

func newResponse(text string, calls []ToolCall, usage Usage) *Response {
	if len(calls) > 0 {
		return &Response{Reply: ToolCallBatch{Text: text, Calls: calls}, Usage: usage}
	}
	return &Response{Reply: TextOnly{Text: text}, Usage: usage}
}
