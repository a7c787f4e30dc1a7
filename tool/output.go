package tool

import (
	"context"
	"fmt"

	"github.com/habiliai/dataagent/artifact"
)

type SubmitResultInput struct {
	Inputs      map[string]string `json:"inputs" jsonschema:"required" jsonschema_description:"Map of input names to SQL queries. Each query result becomes a frame available to the program by name. Example: {\"orders\": \"SELECT * FROM marts.fct_orders\"}"`
	Function    string            `json:"function" jsonschema:"required" jsonschema_description:"Program that processes the inputs. Each input is available as a frame by name. Must define a 'result' variable containing the final answer."`
	Explanation string            `json:"explanation" jsonschema:"required" jsonschema_description:"Brief explanation of what this computation does and why it answers the user's question."`
}

type SubmitObservationInput struct {
	Observation       string            `json:"observation" jsonschema:"required" jsonschema_description:"Your observation or analysis in clear, readable prose. Include specific data points to support your findings."`
	SupportingQueries map[string]string `json:"supporting_queries,omitempty" jsonschema_description:"The SQL queries used to find this data. Map of description to SQL query."`
	SupportingData    string            `json:"supporting_data,omitempty" jsonschema_description:"Optional: key data points or a small table that supports your observation."`
}

type RenderArtifactInput struct {
	Inputs      map[string]string `json:"inputs" jsonschema:"required" jsonschema_description:"Map of names to SQL queries. Results become window.DATA.{name} as arrays of objects."`
	Code        string            `json:"code" jsonschema:"required" jsonschema_description:"Complete HTML document with embedded CSS/JS. Access data via window.DATA.{input_name}. Include any libraries via CDN."`
	Filename    string            `json:"filename" jsonschema:"required" jsonschema_description:"Output filename (e.g. 'chart.html')"`
	Explanation string            `json:"explanation" jsonschema:"required" jsonschema_description:"What this visualization shows"`
}

type SendMessageInput struct {
	Message string `json:"message" jsonschema:"required" jsonschema_description:"The message to display to the user."`
}

const renderArtifactDescription = `Render an interactive visualization served on a local port.

HOW IT WORKS:
1. You provide SQL queries to fetch data
2. You write a complete HTML/CSS/JavaScript document for the visualization
3. The system executes the SQL, injects the real rows as window.DATA, serves the file locally and opens the browser

YOUR CODE HAS ACCESS TO:
- window.DATA: object with one key per query name, each an array of row objects
- Any JS library via CDN (D3, Chart.js, Plotly, Three.js, ...)

REQUIREMENTS:
1. Write a complete HTML5 document with <meta charset="UTF-8"> and a viewport meta tag
2. Check that window.DATA exists before using it and show an error message otherwise
3. Make the layout responsive and give charts meaningful titles and labels

The data is injected from real SQL results. Never hardcode data values.`

func (b *Builtins) registerSubmitResult(r *Registry) error {
	return Register(r, Definition{
		Name: SubmitResult,
		Description: "Submit the final answer to the user's question.\n\n" +
			"This executes SQL queries and runs a program on their results. The answer is computed deterministically from the database.\n\n" +
			"Use this when you have figured out the correct queries and logic to answer the question.\n\n" + codeHelp,
		Kind:         KindTerminal,
		Confirmation: "Result displayed to user.",
		Modes:        []OutputMode{ModeAuto, ModeQuery},
	}, func(ctx context.Context, in SubmitResultInput) (*Result, error) {
		answer := b.computeAnswer(ctx, in)
		if !answer.Success {
			return &Result{Text: answer.Error, Payload: answer, Failed: true}, nil
		}
		return &Result{Text: "Result displayed to user.", Payload: answer}, nil
	})
}

func (b *Builtins) computeAnswer(ctx context.Context, in SubmitResultInput) *ComputedAnswer {
	answer := &ComputedAnswer{
		Inputs:       in.Inputs,
		FunctionCode: in.Function,
		Explanation:  in.Explanation,
	}

	for _, name := range sortedKeys(in.Inputs) {
		if err := b.Warehouse.Validate(ctx, in.Inputs[name]); err != nil {
			answer.Error = fmt.Sprintf("SQL error for input '%s': %v", name, err)
			return answer
		}
	}

	tables, failed, err := b.executeInputs(ctx, in.Inputs)
	if err != nil {
		answer.Error = fmt.Sprintf("SQL error for input '%s': %v", failed, err)
		return answer
	}
	answer.InputsUsed = tables

	out, err := b.Sandbox.Execute(ctx, in.Function, tables)
	if err != nil {
		answer.Error = fmt.Sprintf("Function execution error: %v", err)
		return answer
	}

	answer.Success = true
	answer.Result = &out.Value
	answer.Printed = out.Printed
	return answer
}

func (b *Builtins) registerSubmitObservation(r *Registry) error {
	return Register(r, Definition{
		Name: SubmitObservation,
		Description: "Submit a narrative observation or analysis to the user.\n\n" +
			"Use this instead of submit_result when:\n" +
			"- The answer is qualitative (patterns, anomalies, insights)\n" +
			"- You're describing findings rather than computing a single value\n" +
			"- The question asks for analysis or explanation\n\n" +
			"Your observation should be based on data you explored with run_sql/run_code. " +
			"Include specific numbers and examples to support your observations.",
		Kind:         KindTerminal,
		Confirmation: "Observation displayed to user.",
		Modes:        []OutputMode{ModeAuto, ModeObservation},
	}, func(_ context.Context, in SubmitObservationInput) (*Result, error) {
		return &Result{
			Text: "Observation displayed to user.",
			Payload: &ObservationAnswer{
				Observation:       in.Observation,
				SupportingQueries: in.SupportingQueries,
				SupportingData:    in.SupportingData,
			},
		}, nil
	})
}

func (b *Builtins) registerRenderArtifact(r *Registry) error {
	return Register(r, Definition{
		Name:         RenderArtifact,
		Description:  renderArtifactDescription,
		Kind:         KindTerminal,
		Confirmation: "Artifact rendered and opened.",
		Modes:        []OutputMode{ModeAuto},
	}, func(ctx context.Context, in RenderArtifactInput) (*Result, error) {
		out := b.renderArtifact(ctx, in)
		if !out.Success {
			return &Result{Text: "Render failed: " + out.Error, Payload: out, Failed: true}, nil
		}
		return &Result{Text: "Artifact rendered and opened.", Payload: out}, nil
	})
}

func (b *Builtins) renderArtifact(ctx context.Context, in RenderArtifactInput) *ArtifactOutput {
	out := &ArtifactOutput{Explanation: in.Explanation}

	data := make(map[string][]map[string]any, len(in.Inputs))
	for _, name := range sortedKeys(in.Inputs) {
		table, err := b.Warehouse.Query(ctx, in.Inputs[name])
		if err != nil {
			out.Error = fmt.Sprintf("SQL error for '%s': %v", name, err)
			return out
		}
		data[name] = table.Records()
	}

	html, err := artifact.InjectData(in.Code, data)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	published, err := b.Artifacts.Publish(in.Filename, html)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	b.logger().Debug("artifact published", "path", published.FilePath, "url", published.URL)

	out.Success = true
	out.FilePath = published.FilePath
	out.URL = published.URL
	return out
}

func (b *Builtins) registerSendMessage(r *Registry) error {
	return Register(r, Definition{
		Name:         SendMessage,
		Description:  "Send a message to the user. Use this to explain your reasoning, ask clarifying questions, or provide context about what you're doing.",
		Kind:         KindMessage,
		Confirmation: "Message sent.",
	}, func(_ context.Context, in SendMessageInput) (*Result, error) {
		return &Result{Text: "Message sent.", Payload: &UserMessage{Message: in.Message}}, nil
	})
}
