package session

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/internal/db"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/habiliai/dataagent/llm"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type sessionRecord struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"index"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false;index"`

	Model            string
	Status           string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ContextLimit     int
	MessageCount     int
	History          datatypes.JSONType[[]llm.Message]
}

func (sessionRecord) TableName() string {
	return "sessions"
}

// Summary describes a saved or ended session.
type Summary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Model    string    `json:"model,omitempty"`
	Messages int       `json:"messages"`
	Tokens   int       `json:"tokens"`
	Updated  time.Time `json:"updated,omitempty"`
	Status   Status    `json:"status,omitempty"`
	Duration string    `json:"duration,omitempty"`
}

type StatusReport struct {
	Active       bool
	ID           string
	Name         string
	Model        string
	Messages     int
	Tokens       TokenUsage
	ContextLimit int
	UsedPercent  float64
	Warning      bool
	Duration     string
}

// Manager owns the current session and persists sessions in a sqlite table.
type Manager struct {
	db             *gorm.DB
	logger         *slog.Logger
	now            func() time.Time
	warningPercent float64

	mu      sync.Mutex
	current *Session
}

type ManagerOption func(*Manager)

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func WithWarningPercent(percent float64) ManagerOption {
	return func(m *Manager) {
		m.warningPercent = percent
	}
}

func NewManager(dbPath string, opts ...ManagerOption) (*Manager, error) {
	conn, err := db.OpenSqlite(dbPath, "_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn, &sessionRecord{}); err != nil {
		return nil, err
	}

	m := &Manager{
		db:             conn,
		logger:         mylog.Discard(),
		now:            time.Now,
		warningPercent: 80,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) Close() error {
	return db.CloseDB(m.db)
}

func (m *Manager) WarningPercent() float64 {
	return m.warningPercent
}

// Start replaces the current session with a fresh one.
func (m *Manager) Start(model string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = newSession(model, m.now)
	m.logger.Debug("session started", "id", m.current.ID, "model", model)
	return m.current
}

func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) SetModel(model string) error {
	s := m.Current()
	if s == nil {
		return errors.WithStack(errors.ErrNoActiveSession)
	}
	s.SetModel(model)
	return nil
}

// Save persists the current session as paused. A non-empty name renames it.
func (m *Manager) Save(ctx context.Context, name string) (*Session, error) {
	s := m.Current()
	if s == nil {
		return nil, errors.WithStack(errors.ErrNoActiveSession)
	}

	s.mu.Lock()
	if name != "" {
		s.Name = name
	}
	s.Status = StatusPaused
	s.UpdatedAt = m.now()
	record := sessionRecord{
		ID:               s.ID,
		Name:             s.Name,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		Model:            s.Model,
		Status:           string(s.Status),
		PromptTokens:     s.Tokens.Prompt,
		CompletionTokens: s.Tokens.Completion,
		TotalTokens:      s.Tokens.Total,
		ContextLimit:     s.ContextLimit,
		MessageCount:     s.MessageCount,
		History:          datatypes.NewJSONType(append([]llm.Message(nil), s.history...)),
	}
	s.mu.Unlock()

	if err := m.db.WithContext(ctx).Save(&record).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to save session %s", s.ID)
	}
	return s, nil
}

// Load makes the saved session matching identifier current. identifier is an id
// prefix or part of a name; the most recently updated match wins.
func (m *Manager) Load(ctx context.Context, identifier string) (*Session, error) {
	var record sessionRecord
	tx := m.db.WithContext(ctx).Order("updated_at DESC")

	err := tx.Where("id LIKE ?", identifier+"%").First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = m.db.WithContext(ctx).Order("updated_at DESC").Where("name LIKE ?", "%"+identifier+"%").First(&record).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(errors.ErrNotFound, "No session found matching: %s", identifier)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load session")
	}

	s := &Session{
		ID:        record.ID,
		Name:      record.Name,
		Model:     record.Model,
		CreatedAt: record.CreatedAt,
		UpdatedAt: m.now(),
		Status:    StatusActive,
		Tokens: TokenUsage{
			Prompt:     record.PromptTokens,
			Completion: record.CompletionTokens,
			Total:      record.TotalTokens,
		},
		ContextLimit: record.ContextLimit,
		now:          m.now,
	}
	s.SetHistory(record.History.Data())

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return s, nil
}

// List returns saved sessions, most recently updated first.
func (m *Manager) List(ctx context.Context) ([]Summary, error) {
	var records []sessionRecord
	if err := m.db.WithContext(ctx).
		Omit("history").
		Order("updated_at DESC").
		Find(&records).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to list sessions")
	}

	out := make([]Summary, 0, len(records))
	for _, r := range records {
		out = append(out, Summary{
			ID:       r.ID,
			Name:     r.Name,
			Model:    r.Model,
			Messages: r.MessageCount,
			Tokens:   r.TotalTokens,
			Updated:  r.UpdatedAt,
			Status:   Status(r.Status),
		})
	}
	return out, nil
}

// End closes the current session and returns its summary; ok is false when none is active.
func (m *Manager) End() (summary Summary, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil {
		return Summary{}, false
	}
	s.mu.Lock()
	s.Status = StatusEnded
	s.UpdatedAt = m.now()
	summary = Summary{
		ID:       s.ID,
		Duration: formatDuration(m.now().Sub(s.CreatedAt)),
		Messages: s.MessageCount,
		Tokens:   s.Tokens.Total,
	}
	s.mu.Unlock()

	m.current = nil
	return summary, true
}

func (m *Manager) Status() StatusReport {
	s := m.Current()
	if s == nil {
		return StatusReport{}
	}

	used := s.ContextUsagePercent()
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatusReport{
		Active:       true,
		ID:           s.ID,
		Name:         s.Name,
		Model:        s.Model,
		Messages:     s.MessageCount,
		Tokens:       s.Tokens,
		ContextLimit: s.ContextLimit,
		UsedPercent:  math.Round(used*10) / 10,
		Warning:      used >= m.warningPercent,
		Duration:     formatDuration(m.now().Sub(s.CreatedAt)),
	}
}
