package transcript

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestClean(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"color codes", "\x1b[1;32mok\x1b[0m done", "ok done"},
		{"carriage returns", "progress 10%\rprogress 100%\r\n", "progress 10%progress 100%"},
		{"blank line runs", "one\r\n\r\n\r\n\r\ntwo", "one\n\ntwo"},
		{"whitespace only lines", "one\n   \n\t\ntwo", "one\n\ntwo"},
		{"screen clear", "\x1b[2J\x1b[Hprompt>", "prompt>"},
		{"non ascii dropped", "café ✓", "caf"},
		{"bell and nul", "a\x07b\x00c", "abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Clean(tc.raw); got != tc.want {
				t.Errorf("Clean(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

// Feature: memex, Property 2: Cleaned transcripts contain only printable
// ASCII plus whitespace and never two consecutive blank lines.
func TestCleanAllowlist(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.String().Draw(t, "raw")
		got := Clean(raw)
		for i := 0; i < len(got); i++ {
			c := got[i]
			if c != '\n' && c != '\t' && (c < 0x20 || c > 0x7e) {
				t.Fatalf("byte %#x at %d survived cleaning: %q", c, i, got)
			}
		}
		if strings.Contains(got, "\n\n\n") {
			t.Fatalf("repeated blank lines survived: %q", got)
		}
	})
}
