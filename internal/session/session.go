package session

import (
	"time"

	"github.com/fakeyudi/memex/internal/transcript"
)

// ActiveMarker records a supervisor that is currently running an agent.
// It exists from the moment log paths are known until the supervisor exits.
type ActiveMarker struct {
	SessionID         string    `json:"sessionId"`
	RawLogPath        string    `json:"rawLogPath"`
	StructuredLogPath string    `json:"structuredLogPath"`
	PID               int       `json:"pid"`
	StartedAt         time.Time `json:"startedAt"`
}

// PendingMarker records a finished session whose compression has not
// completed yet. Finding one at startup means the previous run died during
// or before compression.
type PendingMarker struct {
	RawLogPath        string    `json:"rawLogPath"`
	StructuredLogPath string    `json:"structuredLogPath"`
	SessionID         string    `json:"sessionId"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Record is the durable per-session record. EndedAt is set exactly once.
type Record struct {
	ID           string            `json:"id"`
	ProjectPath  string            `json:"projectPath"`
	AgentCommand string            `json:"agentCommand"`
	StartedAt    time.Time         `json:"startedAt"`
	EndedAt      *time.Time        `json:"endedAt,omitempty"`
	Summary      string            `json:"summary"`
	LogPath      string            `json:"logPath"`
	Turns        []transcript.Turn `json:"turns"`
	Failed       bool              `json:"failed,omitempty"`
}
