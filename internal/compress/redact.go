package compress

import (
	"regexp"
	"strings"

	"github.com/fakeyudi/memex/internal/transcript"
)

// RedactedPlaceholder replaces every skip span.
const RedactedPlaceholder = "[content excluded by <memex:skip>]"

var (
	skipOpen  = regexp.MustCompile(`(?i)<memex:skip>`)
	skipClose = regexp.MustCompile(`(?i)</memex:skip>`)
)

// Redact replaces each <memex:skip>...</memex:skip> span with
// RedactedPlaceholder. An unclosed span redacts to the end of s.
func Redact(s string) string {
	out, _ := redact(s, false)
	return out
}

// RedactTurns applies Redact across turns. A span opened in one turn stays
// open into later turns until its close tag. Turns left empty are dropped.
func RedactTurns(turns []transcript.Turn) []transcript.Turn {
	out := make([]transcript.Turn, 0, len(turns))
	inSkip := false
	for _, t := range turns {
		t.Content, inSkip = redact(t.Content, inSkip)
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// redact scans s starting inside a span when inSkip is set and reports
// whether s ends inside one.
func redact(s string, inSkip bool) (string, bool) {
	var b strings.Builder
	for {
		if inSkip {
			loc := skipClose.FindStringIndex(s)
			if loc == nil {
				return b.String(), true
			}
			s = s[loc[1]:]
			inSkip = false
			continue
		}
		loc := skipOpen.FindStringIndex(s)
		if loc == nil {
			b.WriteString(s)
			return b.String(), false
		}
		b.WriteString(s[:loc[0]])
		b.WriteString(RedactedPlaceholder)
		s = s[loc[1]:]
		inSkip = true
	}
}
