package engine

import (
	"context"
	"fmt"

	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/internal/tracing"
	"github.com/habiliai/dataagent/llm"
	"github.com/habiliai/dataagent/memory"
	"github.com/habiliai/dataagent/session"
	"github.com/habiliai/dataagent/tool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const skippedResult = "Skipped: a final answer was already delivered."

type (
	// Settings are the per-question choices made by the user.
	Settings struct {
		Model      string
		OutputMode tool.OutputMode
		// ShowRetrieval prints a summary of the retrieved memory.
		ShowRetrieval bool
	}

	// Outcome describes how a question ended.
	Outcome struct {
		State  State
		Rounds int
		// Tool is the terminal tool that delivered the answer, empty when the
		// model ended with text.
		Tool    string
		Payload any
		Text    string
		Usage   llm.Usage

		Retrieved *memory.RetrievalResult
	}
)

type run struct {
	*Engine

	sess     *session.Session
	question string
	settings Settings
	system   string
	tools    []llm.ToolSpec
	pending  []llm.ToolCall
	warned   bool
	outcome  *Outcome
}

// ProcessQuestion answers question within sess. The session history receives
// the user message, every assistant message and one tool result per call.
func (e *Engine) ProcessQuestion(ctx context.Context, sess *session.Session, question string, settings Settings) (_ *Outcome, err error) {
	release, err := sess.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	e.indexing.Wait()

	if settings.Model == "" {
		settings.Model = sess.Model
	}
	if !settings.OutputMode.Valid() {
		settings.OutputMode = tool.ModeAuto
	}

	ctx, cancel := withTimeout(ctx, e.conf.QuestionTimeout)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "engine.ProcessQuestion", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("model", settings.Model),
		attribute.String("output_mode", string(settings.OutputMode)),
		attribute.String("question", question),
	))
	defer func() { tracing.End(span, err) }()

	r := &run{
		Engine:   e,
		sess:     sess,
		question: question,
		settings: settings,
		tools:    e.registry.Specs(settings.OutputMode),
		outcome:  &Outcome{State: StateAwaitingModel},
	}

	sess.AddMessage(llm.UserMessage(question))

	retrieved := r.retrieve(ctx)
	r.system, err = e.SystemPrompt(ctx, settings.OutputMode, retrieved)
	if err != nil {
		return nil, err
	}

	for r.outcome.State != StateDone {
		switch r.outcome.State {
		case StateAwaitingModel:
			err = r.awaitModel(ctx)
		case StateDispatchingTools:
			err = r.dispatchTools(ctx)
		}
		if err != nil {
			return r.outcome, err
		}
	}

	span.SetAttributes(
		attribute.Int("rounds", r.outcome.Rounds),
		attribute.String("terminal_tool", r.outcome.Tool),
	)
	return r.outcome, nil
}

func (r *run) retrieve(ctx context.Context) string {
	if r.retriever == nil {
		return ""
	}

	ctx, cancel := withTimeout(ctx, r.memoryTimeout)
	defer cancel()

	result, err := r.retriever.RetrieveWithScores(ctx, r.question)
	if err != nil {
		r.logger.WarnContext(ctx, "memory retrieval failed", "err", err)
		return ""
	}
	r.outcome.Retrieved = result
	if r.settings.ShowRetrieval {
		r.display.Retrieval(result.Summary())
	}
	return r.retriever.FormatForPrompt(result)
}

func (r *run) awaitModel(ctx context.Context) (err error) {
	if r.outcome.Rounds >= r.conf.MaxRounds {
		r.display.Error(fmt.Sprintf("Stopped after %d model rounds without a final answer.", r.outcome.Rounds))
		return errors.Wrapf(errors.ErrRoundLimit, "no final answer after %d rounds", r.outcome.Rounds)
	}
	r.outcome.Rounds++

	ctx, span := r.tracer.Start(ctx, "engine.generate", trace.WithAttributes(
		attribute.Int("round", r.outcome.Rounds),
	))
	defer func() { tracing.End(span, err) }()

	callCtx, cancel := withTimeout(ctx, r.modelTimeout)
	defer cancel()

	resp, err := r.model.Generate(callCtx, llm.Request{
		Model:     r.settings.Model,
		System:    r.system,
		Messages:  r.sess.History(),
		Tools:     r.tools,
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return errors.Wrapf(err, "model call failed")
	}
	r.recordUsage(resp.Usage)

	switch reply := resp.Reply.(type) {
	case llm.ToolCallBatch:
		r.sess.AddMessage(llm.AssistantMessage(reply.Text, reply.Calls...))
		r.pending = reply.Calls
		r.outcome.State = StateDispatchingTools
	case llm.TextOnly:
		r.sess.AddMessage(llm.AssistantMessage(reply.Text))
		r.display.Reasoning(reply.Text)
		r.outcome.Text = reply.Text
		r.outcome.State = StateDone
	default:
		return errors.Wrapf(errors.ErrEmptyResponse, "unexpected reply %T", resp.Reply)
	}
	return nil
}

func (r *run) recordUsage(usage llm.Usage) {
	r.sess.UpdateTokens(usage.PromptTokens, usage.CompletionTokens)
	r.outcome.Usage.PromptTokens += usage.PromptTokens
	r.outcome.Usage.CompletionTokens += usage.CompletionTokens

	if !r.warned && r.sess.IsContextWarning(r.conf.ContextWarningPercent) {
		r.warned = true
		r.display.Warning(fmt.Sprintf(
			"Context window %.0f%% used. Use /session clear or /session new to start fresh.",
			r.sess.ContextUsagePercent(),
		))
	}
}

func (r *run) dispatchTools(ctx context.Context) error {
	calls := r.pending
	r.pending = nil

	delivered := false
	for i, call := range calls {
		if delivered {
			r.sess.AddMessage(llm.ToolResultMessage(call, skippedResult))
			continue
		}
		if err := ctx.Err(); err != nil {
			// each call keeps exactly one result message
			for _, rest := range calls[i:] {
				r.sess.AddMessage(llm.ToolResultMessage(rest, "Cancelled: "+err.Error()))
			}
			return errors.Wrapf(err, "question aborted")
		}
		delivered = r.dispatch(ctx, call)
	}

	if delivered {
		r.outcome.State = StateDone
	} else {
		r.outcome.State = StateAwaitingModel
	}
	return nil
}

// dispatch runs one call and reports whether it delivered the final answer.
func (r *run) dispatch(ctx context.Context, call llm.ToolCall) bool {
	r.display.ToolCall(call.Name, tool.Summarize(call.Name, call.Arguments))

	ctx, span := r.tracer.Start(ctx, "engine.dispatch", trace.WithAttributes(
		attribute.String("tool", call.Name),
		attribute.String("call.id", call.ID),
		attribute.String("arguments", call.Arguments),
	))
	defer span.End()

	callCtx, cancel := withTimeout(ctx, r.conf.ToolTimeout)
	defer cancel()

	result, def, err := r.registry.Dispatch(callCtx, call)
	if err != nil {
		text := fmt.Sprintf("Unknown tool: %s", call.Name)
		r.logger.WarnContext(ctx, "model called an unknown tool", "tool", call.Name)
		r.display.ToolError(call.Name, text)
		r.sess.AddMessage(llm.ToolResultMessage(call, text))
		return false
	}
	span.SetAttributes(attribute.Bool("failed", result.Failed))

	switch def.Kind {
	case tool.KindTerminal:
		r.showPayload(call.Name, result)
		if result.Failed {
			r.sess.AddMessage(llm.ToolResultMessage(call, result.Text))
			return false
		}
		r.sess.AddMessage(llm.ToolResultMessage(call, def.Confirmation))
		r.outcome.Tool = def.Name
		r.outcome.Payload = result.Payload
		r.indexAnswer(ctx, result.Payload)
		return true

	case tool.KindMessage:
		if msg, ok := result.Payload.(*tool.UserMessage); ok && !result.Failed {
			r.display.Message(msg.Message)
			r.sess.AddMessage(llm.ToolResultMessage(call, def.Confirmation))
			return false
		}
		r.display.ToolError(call.Name, result.Text)
		r.sess.AddMessage(llm.ToolResultMessage(call, result.Text))
		return false

	default:
		if result.Failed {
			r.display.ToolError(call.Name, result.Text)
		} else {
			r.display.ToolResult(call.Name, result.Text)
		}
		r.sess.AddMessage(llm.ToolResultMessage(call, result.Text))
		return false
	}
}

func (r *run) showPayload(name string, result *tool.Result) {
	switch payload := result.Payload.(type) {
	case *tool.ComputedAnswer:
		r.display.ComputedAnswer(payload)
	case *tool.ObservationAnswer:
		r.display.Observation(payload)
	case *tool.ArtifactOutput:
		r.display.Artifact(payload)
	default:
		if result.Failed {
			r.display.ToolError(name, result.Text)
		}
	}
}
