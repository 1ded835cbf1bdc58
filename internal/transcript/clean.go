package transcript

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Normalize strips color and control sequences from a single chunk of
// terminal text and trims surrounding whitespace.
func Normalize(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(keepPrintable(s))
}

// Clean converts a raw capture file into a plain transcript. Control
// sequences and carriage returns are removed, only printable ASCII plus
// newline and tab survive, and runs of blank lines collapse to one.
//
// This approximates what was said; cursor movement and screen clears are
// not replayed.
func Clean(raw string) string {
	s := ansi.Strip(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "")
	s = keepPrintable(s)

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// keepPrintable drops everything outside printable ASCII, newline and tab.
func keepPrintable(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' || c == '\t' || (c >= 0x20 && c <= 0x7e) {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
