package tool

import (
	"context"

	"github.com/habiliai/dataagent/sandbox"
	"github.com/habiliai/dataagent/warehouse"
)

// Kind tells the engine what to do after a tool runs.
type Kind int

const (
	// KindInternal results go back to the model and the loop continues.
	KindInternal Kind = iota
	// KindTerminal results on success are shown to the user and end the question.
	KindTerminal
	// KindMessage results are shown to the user and the loop continues.
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindTerminal:
		return "terminal"
	case KindMessage:
		return "message"
	default:
		return "internal"
	}
}

type OutputMode string

const (
	ModeAuto        OutputMode = "auto"
	ModeObservation OutputMode = "observation"
	ModeQuery       OutputMode = "query"
)

var OutputModes = []OutputMode{ModeAuto, ModeObservation, ModeQuery}

func (m OutputMode) Valid() bool {
	switch m {
	case ModeAuto, ModeObservation, ModeQuery:
		return true
	default:
		return false
	}
}

// Directive is appended to the system prompt to steer the final answer.
func (m OutputMode) Directive() string {
	switch m {
	case ModeObservation:
		return "\n\n**OUTPUT MODE: OBSERVATION ONLY** - You MUST use submit_observation for your final answer."
	case ModeQuery:
		return "\n\n**OUTPUT MODE: QUERY ONLY** - You MUST use submit_result for your final answer."
	default:
		return ""
	}
}

// Definition is the registered, immutable description of a tool.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
	Kind        Kind

	// Confirmation is the tool result sent to the model after a terminal or
	// message tool succeeds.
	Confirmation string

	// Modes restricts a tool to some output modes. Empty means every mode.
	Modes []OutputMode
}

func (d Definition) EnabledIn(mode OutputMode) bool {
	if len(d.Modes) == 0 {
		return true
	}
	for _, m := range d.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Result is the outcome of one dispatched call. Text goes back to the model;
// Payload is the structured value handed to the display.
type Result struct {
	Text    string
	Payload any
	Failed  bool
}

type Handler func(ctx context.Context, args map[string]any) (*Result, error)

// ComputedAnswer is the payload of submit_result.
type ComputedAnswer struct {
	Success      bool                        `json:"success"`
	Result       *sandbox.Value              `json:"result,omitempty"`
	Printed      string                      `json:"printed,omitempty"`
	InputsUsed   map[string]*warehouse.Table `json:"-"`
	Inputs       map[string]string           `json:"inputs"`
	FunctionCode string                      `json:"function_code"`
	Explanation  string                      `json:"explanation"`
	Error        string                      `json:"error,omitempty"`
}

// ObservationAnswer is the payload of submit_observation.
type ObservationAnswer struct {
	Observation       string            `json:"observation"`
	SupportingQueries map[string]string `json:"supporting_queries,omitempty"`
	SupportingData    string            `json:"supporting_data,omitempty"`
}

// ArtifactOutput is the payload of render_artifact.
type ArtifactOutput struct {
	Success     bool   `json:"success"`
	FilePath    string `json:"file_path,omitempty"`
	URL         string `json:"url,omitempty"`
	Explanation string `json:"explanation"`
	Error       string `json:"error,omitempty"`
}

// UserMessage is the payload of send_message.
type UserMessage struct {
	Message string `json:"message"`
}
