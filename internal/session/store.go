// Package session tracks in-flight sessions on disk so a killed supervisor
// can be recovered on the next start.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fakeyudi/memex/internal/memory"
	"github.com/fakeyudi/memex/internal/transcript"
)

var (
	// ErrNoMarker is returned when the requested marker file does not exist.
	ErrNoMarker = errors.New("no marker")
	// ErrNoRecord is returned when a session record does not exist.
	ErrNoRecord = errors.New("no session record")
)

const (
	activeFile  = "active.json"
	pendingFile = "pending.json"
)

// Tracker owns the durable markers and session records of one project.
type Tracker struct {
	dir   string
	now   func() time.Time
	alive func(pid int) bool
}

// NewTracker returns a Tracker storing its files under dir.
func NewTracker(dir string) (*Tracker, error) {
	for _, d := range []string{dir, filepath.Join(dir, "sessions"), filepath.Join(dir, "logs")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("creating session directory: %w", err)
		}
	}
	return &Tracker{dir: dir, now: time.Now, alive: IsProcessAlive}, nil
}

// Dir returns the project state directory.
func (t *Tracker) Dir() string { return t.dir }

// LogDir returns where raw and structured session logs are written.
func (t *Tracker) LogDir() string { return filepath.Join(t.dir, "logs") }

func (t *Tracker) WriteActive(m ActiveMarker) error {
	return t.writeJSON(activeFile, m, "active marker")
}

func (t *Tracker) LoadActive() (*ActiveMarker, error) {
	var m ActiveMarker
	if err := t.readJSON(activeFile, &m, "active marker"); err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *Tracker) ClearActive() error {
	return t.remove(activeFile, "active marker")
}

func (t *Tracker) WritePending(m PendingMarker) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = t.now()
	}
	return t.writeJSON(pendingFile, m, "pending marker")
}

func (t *Tracker) LoadPending() (*PendingMarker, error) {
	var m PendingMarker
	if err := t.readJSON(pendingFile, &m, "pending marker"); err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *Tracker) ClearPending() error {
	return t.remove(pendingFile, "pending marker")
}

// SaveRecord writes a session record.
func (t *Tracker) SaveRecord(r *Record) error {
	if r.ID == "" {
		return fmt.Errorf("failed to persist session record: empty id")
	}
	return t.writeJSON(recordName(r.ID), r, "session record")
}

// LoadRecord reads a session record by id. Returns ErrNoRecord if absent.
func (t *Tracker) LoadRecord(id string) (*Record, error) {
	var r Record
	if err := t.readJSON(recordName(id), &r, "session record"); err != nil {
		if errors.Is(err, ErrNoMarker) {
			return nil, ErrNoRecord
		}
		return nil, err
	}
	return &r, nil
}

// Finalize closes a session record with summary and the session's last
// turns. EndedAt is only set the first time and never precedes StartedAt;
// later calls update the summary and failure flag only. Nil turns keep the
// turns already recorded. A missing record is created from id.
func (t *Tracker) Finalize(id, summary string, failed bool, turns []transcript.Turn) (*Record, error) {
	r, err := t.LoadRecord(id)
	if errors.Is(err, ErrNoRecord) {
		r = &Record{ID: id, StartedAt: t.now()}
	} else if err != nil {
		return nil, err
	}
	if r.EndedAt == nil {
		ended := t.now()
		if ended.Before(r.StartedAt) {
			ended = r.StartedAt
		}
		r.EndedAt = &ended
	}
	r.Summary = summary
	r.Failed = failed
	if turns != nil {
		if n := len(turns); n > memory.MaxTurns {
			turns = turns[n-memory.MaxTurns:]
		}
		r.Turns = append([]transcript.Turn{}, turns...)
	}
	if err := t.SaveRecord(r); err != nil {
		return nil, err
	}
	return r, nil
}

func recordName(id string) string {
	return filepath.Join("sessions", filepath.Base(id)+".json")
}

func (t *Tracker) writeJSON(name string, v any, what string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to persist %s: %w", what, err)
	}
	if err := memory.WriteFileAtomic(filepath.Join(t.dir, name), data); err != nil {
		return fmt.Errorf("failed to persist %s: %w", what, err)
	}
	return nil
}

func (t *Tracker) readJSON(name string, v any, what string) error {
	data, err := os.ReadFile(filepath.Join(t.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoMarker
		}
		return fmt.Errorf("failed to read %s: %w", what, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", what, err)
	}
	return nil
}

func (t *Tracker) remove(name, what string) error {
	if err := os.Remove(filepath.Join(t.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", what, err)
	}
	return nil
}
