// Package transcript turns raw terminal bytes into timestamped entries and
// conversation turns.
package transcript

import "time"

// Source identifies which side of the terminal produced an entry.
type Source string

const (
	SourceUser  Source = "user"
	SourceAgent Source = "agent"
)

// Role is the conversation role a Source maps to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one captured line (input) or write (output). Entries are
// append-only and written to the structured log as one JSON object per line.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	Source         Source    `json:"source"`
	RawText        string    `json:"rawText"`
	NormalizedText string    `json:"normalizedText"`
}

// Turn is a run of consecutive same-source entries merged together.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RoleFor maps an entry source to its conversation role.
func RoleFor(s Source) Role {
	if s == SourceUser {
		return RoleUser
	}
	return RoleAssistant
}
