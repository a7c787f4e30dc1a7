package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/llm"
)

type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

func (u *TokenUsage) add(prompt, completion int) {
	u.Prompt += prompt
	u.Completion += completion
	u.Total += prompt + completion
}

// Session is one conversation with the agent. History is appended only by the
// engine; the mutex guards it against status readers.
type Session struct {
	ID           string
	Name         string
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Status       Status
	Tokens       TokenUsage
	ContextLimit int
	MessageCount int

	mu      sync.Mutex
	history []llm.Message
	busy    atomic.Bool
	now     func() time.Time
}

func New(model string) *Session {
	return newSession(model, time.Now)
}

func newSession(model string, now func() time.Time) *Session {
	t := now()
	return &Session{
		ID:           uuid.NewString()[:8],
		Model:        model,
		CreatedAt:    t,
		UpdatedAt:    t,
		Status:       StatusActive,
		ContextLimit: config.ContextLimit(model),
		now:          now,
	}
}

// Acquire marks the session as answering a question. The returned func releases it.
func (s *Session) Acquire() (func(), error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, errors.WithStack(errors.ErrSessionBusy)
	}
	var once sync.Once
	return func() {
		once.Do(func() { s.busy.Store(false) })
	}, nil
}

func (s *Session) AddMessage(msgs ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, msgs...)
	s.MessageCount = countUserMessages(s.history)
	s.UpdatedAt = s.now()
}

// History returns a copy of the conversation so far.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Message(nil), s.history...)
}

func (s *Session) SetHistory(history []llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append([]llm.Message(nil), history...)
	s.MessageCount = countUserMessages(s.history)
}

func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	s.MessageCount = 0
	s.UpdatedAt = s.now()
}

func (s *Session) UpdateTokens(prompt, completion int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Tokens.add(prompt, completion)
	s.UpdatedAt = s.now()
}

func (s *Session) Usage() TokenUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Tokens
}

func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Model = model
	s.ContextLimit = config.ContextLimit(model)
}

// ContextUsagePercent is the share of the context window consumed by total tokens.
func (s *Session) ContextUsagePercent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ContextLimit == 0 {
		return 0
	}
	return float64(s.Tokens.Total) / float64(s.ContextLimit) * 100
}

func (s *Session) IsContextWarning(threshold float64) bool {
	return s.ContextUsagePercent() >= threshold
}

// Duration renders the elapsed time since creation as "1h 2m", "3m 4s" or "5s".
func (s *Session) Duration() string {
	return formatDuration(s.now().Sub(s.CreatedAt))
}

func formatDuration(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	minutes, seconds := total/60, total%60
	hours, minutes := minutes/60, minutes%60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func countUserMessages(history []llm.Message) int {
	n := 0
	for _, m := range history {
		if m.Role == llm.RoleUser {
			n++
		}
	}
	return n
}
