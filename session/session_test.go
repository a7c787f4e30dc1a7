package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func newManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "sessions", "sessions.db"), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSession_Tokens(t *testing.T) {
	s := New("gpt-4")
	assert.Len(t, s.ID, 8)
	assert.Equal(t, 8192, s.ContextLimit)
	assert.Equal(t, StatusActive, s.Status)

	s.UpdateTokens(6000, 500)
	assert.Equal(t, TokenUsage{Prompt: 6000, Completion: 500, Total: 6500}, s.Usage())
	assert.InDelta(t, 79.3, s.ContextUsagePercent(), 0.1)
	assert.False(t, s.IsContextWarning(80))

	s.UpdateTokens(100, 0)
	assert.True(t, s.IsContextWarning(80))

	s.SetModel("o1")
	assert.Equal(t, 200000, s.ContextLimit)
}

func TestSession_History(t *testing.T) {
	s := New("gpt-4o")
	call := llm.ToolCall{ID: "call_1", Name: "run_sql", Arguments: `{"sql":"SELECT 1"}`}

	s.AddMessage(llm.UserMessage("hi"))
	s.AddMessage(llm.AssistantMessage("", call), llm.ToolResultMessage(call, "1"))
	s.AddMessage(llm.UserMessage("again"))
	assert.Equal(t, 2, s.MessageCount)
	assert.Len(t, s.History(), 4)

	s.ClearHistory()
	assert.Empty(t, s.History())
	assert.Zero(t, s.MessageCount)
}

func TestSession_Acquire(t *testing.T) {
	s := New("gpt-4o")

	release, err := s.Acquire()
	require.NoError(t, err)

	_, err = s.Acquire()
	assert.ErrorIs(t, err, errors.ErrSessionBusy)

	release()
	release()
	again, err := s.Acquire()
	require.NoError(t, err)
	again()
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "5s", formatDuration(5*time.Second))
	assert.Equal(t, "3m 4s", formatDuration(3*time.Minute+4*time.Second))
	assert.Equal(t, "1h 2m", formatDuration(time.Hour+2*time.Minute+30*time.Second))
}

func TestManager_SaveLoad(t *testing.T) {
	clock := newClock()
	m := newManager(t, clock)

	first := m.Start("gpt-4o")
	first.AddMessage(llm.UserMessage("What is total revenue?"), llm.AssistantMessage("60"))
	first.UpdateTokens(120, 30)
	_, err := m.Save(t.Context(), "revenue deep dive")
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, first.Status)

	clock.Advance(time.Minute)
	second := m.Start("gpt-4o-mini")
	_, err = m.Save(t.Context(), "revenue follow-up")
	require.NoError(t, err)

	t.Run("given an id prefix, when loading, then that session becomes current and active", func(t *testing.T) {
		loaded, err := m.Load(t.Context(), first.ID[:4])
		require.NoError(t, err)
		assert.Equal(t, first.ID, loaded.ID)
		assert.Equal(t, StatusActive, loaded.Status)
		assert.Equal(t, 1, loaded.MessageCount)
		assert.Equal(t, 150, loaded.Usage().Total)
		assert.Equal(t, "60", loaded.History()[1].Content)
		assert.Same(t, loaded, m.Current())
	})

	t.Run("given a name fragment shared by two sessions, when loading, then the most recent wins", func(t *testing.T) {
		loaded, err := m.Load(t.Context(), "revenue")
		require.NoError(t, err)
		assert.Equal(t, second.ID, loaded.ID)
	})

	t.Run("given no match, when loading, then not found is reported", func(t *testing.T) {
		_, err := m.Load(t.Context(), "zzz-nothing")
		require.ErrorIs(t, err, errors.ErrNotFound)
		assert.Contains(t, err.Error(), "No session found matching: zzz-nothing")
	})

	list, err := m.List(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, "revenue deep dive", list[1].Name)
	assert.Equal(t, 150, list[1].Tokens)
}

func TestManager_EndAndStatus(t *testing.T) {
	clock := newClock()
	m := newManager(t, clock)

	_, ok := m.End()
	assert.False(t, ok)
	assert.False(t, m.Status().Active)

	s := m.Start("gpt-4")
	s.AddMessage(llm.UserMessage("q"))
	s.UpdateTokens(7000, 0)
	clock.Advance(3*time.Minute + 4*time.Second)

	status := m.Status()
	assert.True(t, status.Active)
	assert.Equal(t, 85.4, status.UsedPercent)
	assert.True(t, status.Warning)
	assert.Equal(t, "3m 4s", status.Duration)

	summary, ok := m.End()
	require.True(t, ok)
	assert.Equal(t, Summary{ID: s.ID, Duration: "3m 4s", Messages: 1, Tokens: 7000}, summary)
	assert.Nil(t, m.Current())
	assert.Equal(t, StatusEnded, s.Status)

	_, err := m.Save(t.Context(), "")
	assert.ErrorIs(t, err, errors.ErrNoActiveSession)
}
