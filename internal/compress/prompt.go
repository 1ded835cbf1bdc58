package compress

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fakeyudi/memex/internal/gitctx"
	"github.com/fakeyudi/memex/internal/memory"
)

// SystemPrompt frames the summarizer's job.
const SystemPrompt = `You maintain the structured memory of a software project across coding sessions with an AI agent.
You receive the project's existing memory (if any), some git context and the tail of the latest session transcript.
Return the UPDATED memory as a single JSON object and nothing else, with these keys:
  "stack": [string]                       languages, frameworks and tools in use
  "description": string                   one or two sentences about the project
  "decisions": [{"decision": string, "reason": string}]
  "currentFocus": string                  what the work is centered on right now
  "focusHistory": [string]                optional; earlier focus values, oldest first
  "pendingTasks": [string]                concrete next steps, most important first
  "importantFiles": [{"path": string, "purpose": string}]
  "gotchas": [string]                     traps and non-obvious constraints
  "sessionSummary": string                what happened in this session, 1-3 sentences
Keep existing facts that are still true, drop ones the session made obsolete, and never invent details.
Text shown as ` + RedactedPlaceholder + ` was removed on purpose; do not speculate about it.`

// buildUserMessage renders existing memory, git context and the transcript
// tail into the single user message sent to the summarizer.
func buildUserMessage(prior *memory.ProjectMemory, git *gitctx.Context, transcript string, tailChars int) string {
	var b strings.Builder

	b.WriteString("## Existing memory\n")
	if prior == nil {
		b.WriteString("(none, this is the first session)\n")
	} else {
		m := prior.Clone()
		// Turns and sessions are maintained locally; sending them only costs tokens.
		m.LastConversationTurns = nil
		m.RecentSessions = nil
		data, _ := json.MarshalIndent(m, "", "  ")
		b.Write(data)
		b.WriteByte('\n')
	}

	b.WriteString("\n## Git context\n")
	if git == nil {
		b.WriteString("(unavailable)\n")
	} else {
		data, _ := json.MarshalIndent(git, "", "  ")
		b.Write(data)
		b.WriteByte('\n')
	}

	tail := Tail(transcript, tailChars)
	if len(tail) < len(transcript) {
		fmt.Fprintf(&b, "\n## Session transcript (last %d characters)\n", len(tail))
	} else {
		b.WriteString("\n## Session transcript\n")
	}
	b.WriteString(tail)
	b.WriteByte('\n')
	return b.String()
}

// Tail returns at most n bytes from the end of s without splitting a rune.
func Tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}
