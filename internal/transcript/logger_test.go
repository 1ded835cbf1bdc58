package transcript

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// fakeNow returns a clock that advances one second per call.
func fakeNow() func() time.Time {
	base := time.Unix(1_700_000_000, 0).UTC()
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestRecordInputBuffersUntilLineTerminator(t *testing.T) {
	l := NewLogger(nil)
	for _, c := range "hello" {
		l.RecordInput([]byte{byte(c)})
	}
	if got := len(l.Entries()); got != 0 {
		t.Fatalf("expected no entries before newline, got %d", got)
	}
	l.RecordInput([]byte("\r"))

	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Source != SourceUser || entries[0].NormalizedText != "hello" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestRecordInputAppliesBackspace(t *testing.T) {
	l := NewLogger(nil)
	l.RecordInput([]byte("helpp\x7fo\n"))
	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].NormalizedText != "helpo" {
		t.Errorf("NormalizedText: got %q, want %q", entries[0].NormalizedText, "helpo")
	}
	if entries[0].RawText != "helpp\x7fo" {
		t.Errorf("RawText should keep raw bytes, got %q", entries[0].RawText)
	}
}

func TestRecordOutputStripsColorAndDropsEmpty(t *testing.T) {
	l := NewLogger(nil)
	l.RecordOutput([]byte("\x1b[31m  red text  \x1b[0m\r\n"))
	l.RecordOutput([]byte("\x1b[2J\x1b[H"))

	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Source != SourceAgent {
		t.Errorf("Source: got %q, want agent", entries[0].Source)
	}
	if entries[0].NormalizedText != "red text" {
		t.Errorf("NormalizedText: got %q", entries[0].NormalizedText)
	}
}

func TestFlushEmitsPartialLine(t *testing.T) {
	l := NewLogger(nil)
	l.RecordInput([]byte("unfinished"))
	l.Flush()
	if got := l.Entries(); len(got) != 1 || got[0].NormalizedText != "unfinished" {
		t.Fatalf("expected flushed partial line, got %+v", got)
	}
}

func TestStructuredSinkAndReadLogRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.now = fakeNow()
	l.RecordInput([]byte("fix the parser\n"))
	l.RecordOutput([]byte("Looking at parser.go"))

	if err := l.Err(); err != nil {
		t.Fatalf("sink error: %v", err)
	}
	lines := strings.Count(buf.String(), "\n")
	if lines != 2 {
		t.Fatalf("expected 2 JSON lines, got %d: %q", lines, buf.String())
	}

	// A torn final line from a crash must not hide earlier entries.
	buf.WriteString(`{"timestamp":"2024-01-01T00:00:00Z","sour`)

	entries, err := ReadLog(&buf)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Source != SourceUser || entries[1].Source != SourceAgent {
		t.Errorf("unexpected sources: %q, %q", entries[0].Source, entries[1].Source)
	}
}

func TestFlatRendering(t *testing.T) {
	entries := []Entry{
		{Source: SourceUser, NormalizedText: "hi"},
		{Source: SourceAgent, NormalizedText: "hello"},
	}
	want := "[USER]: hi\n[AGENT]: hello"
	if got := Flat(entries); got != want {
		t.Errorf("Flat: got %q, want %q", got, want)
	}
}

func TestTurnsMergeKeepsFirstTimestamp(t *testing.T) {
	t0 := time.Unix(100, 0)
	entries := []Entry{
		{Timestamp: t0, Source: SourceUser, NormalizedText: "a"},
		{Timestamp: t0.Add(time.Second), Source: SourceUser, NormalizedText: "b"},
		{Timestamp: t0.Add(2 * time.Second), Source: SourceAgent, NormalizedText: "c"},
		{Timestamp: t0.Add(3 * time.Second), Source: SourceAgent, NormalizedText: "d"},
		{Timestamp: t0.Add(4 * time.Second), Source: SourceUser, NormalizedText: "e"},
	}
	turns := Turns(entries)
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Content != "a\nb" || !turns[0].Timestamp.Equal(t0) {
		t.Errorf("turn 0: %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant || turns[1].Content != "c\nd" || !turns[1].Timestamp.Equal(t0.Add(2*time.Second)) {
		t.Errorf("turn 1: %+v", turns[1])
	}
	if turns[2].Role != RoleUser || turns[2].Content != "e" {
		t.Errorf("turn 2: %+v", turns[2])
	}
}

// Feature: memex, Property 1: Turns never repeat a role back to back and
// preserve every entry's text in order.
func TestTurnsAlternateRoles(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		entries := make([]Entry, n)
		var texts []string
		for i := range entries {
			src := rapid.SampledFrom([]Source{SourceUser, SourceAgent}).Draw(t, "source")
			text := rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "text")
			entries[i] = Entry{Source: src, NormalizedText: text}
			texts = append(texts, text)
		}

		turns := Turns(entries)
		var rebuilt []string
		for i, turn := range turns {
			if i > 0 && turns[i-1].Role == turn.Role {
				t.Fatalf("turns %d and %d share role %q", i-1, i, turn.Role)
			}
			rebuilt = append(rebuilt, strings.Split(turn.Content, "\n")...)
		}
		if strings.Join(rebuilt, ",") != strings.Join(texts, ",") {
			t.Fatalf("content mismatch: got %v, want %v", rebuilt, texts)
		}
	})
}
