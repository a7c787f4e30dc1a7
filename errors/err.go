package errors

import (
	"fmt"
)

var (
	ErrInvalidConfig   = fmt.Errorf("dataagent: invalid config")
	ErrNotFound        = fmt.Errorf("dataagent: not found")
	ErrInvalidParams   = fmt.Errorf("dataagent: invalid params")
	ErrUnknownTool     = fmt.Errorf("dataagent: unknown tool")
	ErrRoundLimit      = fmt.Errorf("dataagent: round limit exceeded")
	ErrSessionBusy     = fmt.Errorf("dataagent: session already has a question in flight")
	ErrNoActiveSession = fmt.Errorf("dataagent: no active session")
	ErrEmptyResponse   = fmt.Errorf("dataagent: empty model response")
)
