package transcript

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
)

// Logger records terminal I/O as entries. Input bytes are buffered until a
// line terminator arrives so keystrokes do not each become an entry; output
// bytes are flushed once per write.
//
// Logger is safe for concurrent use: the PTY recorder feeds input and output
// from separate goroutines.
type Logger struct {
	mu      sync.Mutex
	entries []Entry
	pending bytes.Buffer
	enc     *json.Encoder
	sinkErr error
	now     func() time.Time
}

// NewLogger returns a Logger that also appends every entry to sink as JSON
// lines. sink may be nil.
func NewLogger(sink io.Writer) *Logger {
	l := &Logger{now: time.Now}
	if sink != nil {
		l.enc = json.NewEncoder(sink)
	}
	return l
}

// RecordInput buffers user keystrokes and emits one entry per completed line.
func (l *Logger) RecordInput(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range p {
		if c == '\r' || c == '\n' {
			l.flushPendingLocked()
			continue
		}
		l.pending.WriteByte(c)
	}
}

// RecordOutput emits one entry for a chunk of agent output. Chunks that are
// empty after stripping control codes are dropped.
func (l *Logger) RecordOutput(p []byte) {
	raw := string(p)
	norm := Normalize(raw)
	if norm == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendLocked(Entry{
		Timestamp:      l.now(),
		Source:         SourceAgent,
		RawText:        raw,
		NormalizedText: norm,
	})
}

// Flush emits any partially typed input line.
func (l *Logger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushPendingLocked()
}

// Entries returns a copy of everything recorded so far.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Err reports the first error writing to the structured log sink.
func (l *Logger) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sinkErr
}

// Flat renders the entries as "[SOURCE]: text" lines for compression input.
func (l *Logger) Flat() string {
	return Flat(l.Entries())
}

// Turns collapses the recorded entries into conversation turns.
func (l *Logger) Turns() []Turn {
	return Turns(l.Entries())
}

func (l *Logger) flushPendingLocked() {
	if l.pending.Len() == 0 {
		return
	}
	raw := l.pending.String()
	l.pending.Reset()
	norm := Normalize(applyBackspaces(raw))
	if norm == "" {
		return
	}
	l.appendLocked(Entry{
		Timestamp:      l.now(),
		Source:         SourceUser,
		RawText:        raw,
		NormalizedText: norm,
	})
}

func (l *Logger) appendLocked(e Entry) {
	l.entries = append(l.entries, e)
	if l.enc != nil && l.sinkErr == nil {
		l.sinkErr = l.enc.Encode(e)
	}
}

// applyBackspaces resolves DEL and BS against the preceding byte.
func applyBackspaces(s string) string {
	if !strings.ContainsAny(s, "\x7f\b") {
		return s
	}
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 0x7f, '\b':
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
			}
		default:
			buf = append(buf, s[i])
		}
	}
	return string(buf)
}

// Flat renders entries as "[USER]: text" / "[AGENT]: text" lines.
func Flat(entries []Entry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("[")
		sb.WriteString(strings.ToUpper(string(e.Source)))
		sb.WriteString("]: ")
		sb.WriteString(e.NormalizedText)
	}
	return sb.String()
}

// Turns merges consecutive same-source entries into one turn, keeping the
// timestamp of the first entry in each run.
func Turns(entries []Entry) []Turn {
	var turns []Turn
	for _, e := range entries {
		role := RoleFor(e.Source)
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Content += "\n" + e.NormalizedText
			continue
		}
		turns = append(turns, Turn{
			Role:      role,
			Content:   e.NormalizedText,
			Timestamp: e.Timestamp,
		})
	}
	return turns
}
