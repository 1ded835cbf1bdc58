package compress

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fakeyudi/memex/internal/memory"
)

// response is the summarizer's reply. Pointer fields distinguish "omitted"
// from "empty" so an omitted key keeps the prior value.
type response struct {
	Stack          *[]string               `json:"stack"`
	Description    *string                 `json:"description"`
	Decisions      *[]memory.Decision      `json:"decisions"`
	CurrentFocus   *string                 `json:"currentFocus"`
	FocusHistory   *[]string               `json:"focusHistory"`
	PendingTasks   *[]string               `json:"pendingTasks"`
	ImportantFiles *[]memory.ImportantFile `json:"importantFiles"`
	Gotchas        *[]string               `json:"gotchas"`
	SessionSummary string                  `json:"sessionSummary"`
}

func (r *response) empty() bool {
	return r.Stack == nil && r.Description == nil && r.Decisions == nil &&
		r.CurrentFocus == nil && r.FocusHistory == nil && r.PendingTasks == nil &&
		r.ImportantFiles == nil && r.Gotchas == nil && r.SessionSummary == ""
}

// parseResponse decodes the summarizer output, unwrapping a markdown code
// fence or surrounding prose if present.
func parseResponse(text string) (*response, error) {
	body := unfence(text)
	if body == "" {
		return nil, errors.New("summarizer returned an empty response")
	}
	if start, end := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}'); start >= 0 && end > start {
		body = body[start : end+1]
	} else {
		return nil, fmt.Errorf("summarizer response is not a JSON object: %q", snippet(body))
	}

	var r response
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("malformed summarizer response: %v", err)
	}
	if r.empty() {
		return nil, errors.New("summarizer response contained no memory fields")
	}
	return &r, nil
}

func unfence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line, which may carry a language tag.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}

// apply merges r into m. Provided fields overwrite; omitted fields keep the
// prior value. Focus history is repaired so it never holds the current focus.
func (r *response) apply(m *memory.ProjectMemory) {
	if r.Stack != nil {
		m.Stack = nonNil(*r.Stack)
	}
	if r.Description != nil {
		m.Description = *r.Description
	}
	if r.Decisions != nil {
		m.Decisions = append([]memory.Decision{}, *r.Decisions...)
	}
	if r.PendingTasks != nil {
		m.PendingTasks = nonNil(*r.PendingTasks)
	}
	if r.ImportantFiles != nil {
		m.ImportantFiles = append([]memory.ImportantFile{}, *r.ImportantFiles...)
	}
	if r.Gotchas != nil {
		m.Gotchas = nonNil(*r.Gotchas)
	}

	focus := m.CurrentFocus
	if r.CurrentFocus != nil {
		focus = strings.TrimSpace(*r.CurrentFocus)
	}
	if r.FocusHistory != nil {
		m.CurrentFocus = focus
		m.FocusHistory = memory.NormalizeFocusHistory(*r.FocusHistory, focus)
		return
	}
	m.SetFocus(focus)
}

func nonNil(s []string) []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
