package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/memex/internal/memory"
	"github.com/fakeyudi/memex/internal/transcript"
)

func sample() *memory.ProjectMemory {
	m := memory.New()
	m.Description = "session memory for coding agents"
	m.CurrentFocus = "tui"
	m.PendingTasks = []string{"wire viewer"}
	m.Decisions = []memory.Decision{{Decision: "use bubbletea", Reason: "already in the stack"}}
	m.ImportantFiles = []memory.ImportantFile{{Path: "internal/tui/tui.go", Purpose: "viewer"}}
	m.RecordSession(memory.SessionEntry{ID: "s1", StartedAt: time.Now(), Summary: "first pass"})
	m.RecordSession(memory.SessionEntry{ID: "s2", StartedAt: time.Now(), Summary: "compression failed: bad json", Failed: true, FailureReason: "bad json"})
	m.SetTurns([]transcript.Turn{
		{Role: transcript.RoleUser, Content: "first question"},
		{Role: transcript.RoleAssistant, Content: "latest answer"},
	})
	return m
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewBeforeResize(t *testing.T) {
	assert.Equal(t, "Loading…", New(sample(), "/p").View())
}

func TestTabSwitching(t *testing.T) {
	m := send(t, New(sample(), "/work/p"), tea.WindowSizeMsg{Width: 120, Height: 40})
	out := m.View()
	assert.Contains(t, out, "/work/p")
	assert.Contains(t, out, "session memory for coding agents")

	m = send(t, m, key("tab"))
	assert.Equal(t, tabTasks, m.activeTab)
	assert.Contains(t, m.View(), "wire viewer")

	m = send(t, m, key("3"))
	assert.Contains(t, m.View(), "use bubbletea")

	m = send(t, m, key("h"))
	assert.Equal(t, tabTasks, m.activeTab)

	m = send(t, m, key("1"))
	m = send(t, m, key("shift+tab"))
	assert.Equal(t, tabConversation, m.activeTab)
}

func TestSessionsExpand(t *testing.T) {
	m := send(t, New(sample(), "/p"), tea.WindowSizeMsg{Width: 120, Height: 40})
	m = send(t, m, key("5"))
	assert.NotContains(t, m.View(), "Failure:")

	m = send(t, m, key("down"))
	m = send(t, m, key("enter"))
	assert.Equal(t, 1, m.sessionCursor)
	assert.Contains(t, m.View(), "Failure:")
	assert.Contains(t, m.View(), "bad json")

	m = send(t, m, key("enter"))
	assert.NotContains(t, m.View(), "Failure:")
}

func TestConversationSortToggle(t *testing.T) {
	m := send(t, New(sample(), "/p"), tea.WindowSizeMsg{Width: 120, Height: 40})
	m = send(t, m, key("6"))
	out := m.View()
	assert.Less(t, strings.Index(out, "first question"), strings.Index(out, "latest answer"))

	m = send(t, m, key("s"))
	out = m.View()
	assert.Contains(t, out, "newest first")
	assert.Less(t, strings.Index(out, "latest answer"), strings.Index(out, "first question"))
}

func TestEmptyMemory(t *testing.T) {
	m := send(t, New(nil, "/p"), tea.WindowSizeMsg{Width: 80, Height: 24})
	for _, k := range []string{"2", "3", "4", "5", "6"} {
		m = send(t, m, key(k))
		assert.Contains(t, m.View(), "(none)")
	}
}
