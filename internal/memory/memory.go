// Package memory defines the structured project memory and its durable store.
package memory

import (
	"time"

	"github.com/fakeyudi/memex/internal/transcript"
)

const (
	MaxRecentSessions = 5
	MaxTurns          = 30
	MaxFocusHistory   = 10
)

// ProjectMemory is everything memex knows about a project between sessions.
type ProjectMemory struct {
	Stack                 []string          `json:"stack" yaml:"stack"`
	Description           string            `json:"description" yaml:"description"`
	Decisions             []Decision        `json:"decisions" yaml:"decisions"`
	CurrentFocus          string            `json:"currentFocus" yaml:"currentFocus"`
	FocusHistory          []string          `json:"focusHistory" yaml:"focusHistory"`
	PendingTasks          []string          `json:"pendingTasks" yaml:"pendingTasks"`
	ImportantFiles        []ImportantFile   `json:"importantFiles" yaml:"importantFiles"`
	Gotchas               []string          `json:"gotchas" yaml:"gotchas"`
	RecentSessions        []SessionEntry    `json:"recentSessions" yaml:"recentSessions"`
	LastConversationTurns []transcript.Turn `json:"lastConversationTurns" yaml:"lastConversationTurns"`
	LastUpdated           time.Time         `json:"lastUpdated" yaml:"lastUpdated"`
}

// Decision is an architectural or product choice with its reason.
type Decision struct {
	Decision string `json:"decision" yaml:"decision"`
	Reason   string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ImportantFile is a path worth remembering and what it is for.
type ImportantFile struct {
	Path    string `json:"path" yaml:"path"`
	Purpose string `json:"purpose,omitempty" yaml:"purpose,omitempty"`
}

// SessionEntry summarizes one finished session. Failed entries keep the
// reason so a later manual re-run can be suggested.
type SessionEntry struct {
	ID            string     `json:"id" yaml:"id"`
	StartedAt     time.Time  `json:"startedAt" yaml:"startedAt"`
	EndedAt       *time.Time `json:"endedAt,omitempty" yaml:"endedAt,omitempty"`
	Summary       string     `json:"summary" yaml:"summary"`
	LogPath       string     `json:"logPath,omitempty" yaml:"logPath,omitempty"`
	Failed        bool       `json:"failed,omitempty" yaml:"failed,omitempty"`
	FailureReason string     `json:"failureReason,omitempty" yaml:"failureReason,omitempty"`
}

// New returns an empty memory with non-nil collections.
func New() *ProjectMemory {
	return &ProjectMemory{
		Stack:                 []string{},
		Decisions:             []Decision{},
		FocusHistory:          []string{},
		PendingTasks:          []string{},
		ImportantFiles:        []ImportantFile{},
		Gotchas:               []string{},
		RecentSessions:        []SessionEntry{},
		LastConversationTurns: []transcript.Turn{},
	}
}

// Clone returns a deep copy of m.
func (m *ProjectMemory) Clone() *ProjectMemory {
	if m == nil {
		return nil
	}
	c := *m
	c.Stack = append([]string{}, m.Stack...)
	c.Decisions = append([]Decision{}, m.Decisions...)
	c.FocusHistory = append([]string{}, m.FocusHistory...)
	c.PendingTasks = append([]string{}, m.PendingTasks...)
	c.ImportantFiles = append([]ImportantFile{}, m.ImportantFiles...)
	c.Gotchas = append([]string{}, m.Gotchas...)
	c.RecentSessions = make([]SessionEntry, len(m.RecentSessions))
	for i, s := range m.RecentSessions {
		if s.EndedAt != nil {
			t := *s.EndedAt
			s.EndedAt = &t
		}
		c.RecentSessions[i] = s
	}
	c.LastConversationTurns = append([]transcript.Turn{}, m.LastConversationTurns...)
	return &c
}

// RecordSession appends e to RecentSessions, replacing an existing entry with
// the same ID in place, and keeps only the newest MaxRecentSessions.
func (m *ProjectMemory) RecordSession(e SessionEntry) {
	for i := range m.RecentSessions {
		if m.RecentSessions[i].ID == e.ID {
			m.RecentSessions[i] = e
			return
		}
	}
	m.RecentSessions = append(m.RecentSessions, e)
	if n := len(m.RecentSessions); n > MaxRecentSessions {
		m.RecentSessions = append([]SessionEntry(nil), m.RecentSessions[n-MaxRecentSessions:]...)
	}
}

// SetTurns stores the most recent MaxTurns turns in chronological order.
func (m *ProjectMemory) SetTurns(turns []transcript.Turn) {
	if n := len(turns); n > MaxTurns {
		turns = turns[n-MaxTurns:]
	}
	m.LastConversationTurns = append([]transcript.Turn{}, turns...)
}

// LastSession returns the newest session entry, or nil.
func (m *ProjectMemory) LastSession() *SessionEntry {
	if len(m.RecentSessions) == 0 {
		return nil
	}
	return &m.RecentSessions[len(m.RecentSessions)-1]
}

// SetFocus moves the memory to a new current focus. The previous focus is
// pushed onto FocusHistory unless it is already present there; the new
// focus is removed from history so history never contains the current
// value. History keeps the last MaxFocusHistory values.
func (m *ProjectMemory) SetFocus(focus string) {
	prior := m.CurrentFocus
	history := append([]string{}, m.FocusHistory...)
	if focus != prior && prior != "" && !contains(history, prior) {
		history = append(history, prior)
	}
	m.CurrentFocus = focus
	m.FocusHistory = NormalizeFocusHistory(history, focus)
}

// NormalizeFocusHistory deduplicates history keeping first occurrences,
// drops empty values and the current focus, and caps it to the last
// MaxFocusHistory values.
func NormalizeFocusHistory(history []string, current string) []string {
	seen := make(map[string]bool, len(history))
	out := make([]string, 0, len(history))
	for _, h := range history {
		if h == "" || h == current || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	if n := len(out); n > MaxFocusHistory {
		out = out[n-MaxFocusHistory:]
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
