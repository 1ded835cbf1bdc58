// Package contextpack renders project memory into a bounded text block that
// is typed into the agent at the start of a session.
package contextpack

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fakeyudi/memex/internal/memory"
)

// Tier controls how much detail is rendered.
type Tier int

const (
	TierBrief    Tier = 1 // one-line orientation
	TierStandard Tier = 2 // key facts plus top tasks and gotchas
	TierFull     Tier = 3 // everything
)

// TruncationNotice is appended when output was cut to fit the budget.
const TruncationNotice = "\n[context truncated]"

// CharsPerToken approximates provider tokens as characters.
const CharsPerToken = 4

// topN is how many tasks and gotchas tier 2 shows.
const topN = 3

// Options parameterize Build.
type Options struct {
	Tier Tier
	// Budget is a character ceiling. Zero uses the tier default.
	Budget int
	// Focus reorders lists by keyword overlap before truncation.
	Focus string
}

// DefaultBudget returns the character ceiling for t.
func DefaultBudget(t Tier) int {
	switch t {
	case TierBrief:
		return 300
	case TierFull:
		return 35000
	default:
		return 2000
	}
}

// BudgetFromTokens converts a provider size limit into a character budget.
func BudgetFromTokens(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	return tokens * CharsPerToken
}

// Build renders m. The result never exceeds the effective budget and ends
// with TruncationNotice exactly when something was cut. A budget too small
// for the notice yields "" whenever cutting is needed.
func Build(m *memory.ProjectMemory, opts Options) string {
	tier := opts.Tier
	if tier < TierBrief || tier > TierFull {
		tier = TierStandard
	}
	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultBudget(tier)
	}
	if m == nil {
		return ""
	}

	v := view{
		tasks:     m.PendingTasks,
		gotchas:   m.Gotchas,
		decisions: m.Decisions,
		files:     m.ImportantFiles,
	}
	if words := focusWords(opts.Focus); len(words) > 0 {
		v.tasks = rankStrings(v.tasks, words)
		v.gotchas = rankStrings(v.gotchas, words)
		v.decisions = rank(v.decisions, words, func(d memory.Decision) string { return d.Decision + " " + d.Reason })
		v.files = rank(v.files, words, func(f memory.ImportantFile) string { return f.Path + " " + f.Purpose })
	}

	var out string
	switch tier {
	case TierBrief:
		out = brief(m, v)
	case TierFull:
		out = full(m, v)
	default:
		out = standard(m, v)
	}
	return Truncate(out, budget)
}

// Truncate cuts s to at most budget bytes at the last newline that leaves
// room for TruncationNotice, then appends the notice. With no newline in
// range it cuts hard.
func Truncate(s string, budget int) string {
	if len(s) <= budget {
		return s
	}
	limit := budget - len(TruncationNotice)
	switch {
	case limit < 0:
		// Not even the notice fits.
		return ""
	case limit == 0:
		return TruncationNotice
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	cut := s[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \t\n") + TruncationNotice
}

type view struct {
	tasks     []string
	gotchas   []string
	decisions []memory.Decision
	files     []memory.ImportantFile
}

func brief(m *memory.ProjectMemory, v view) string {
	parts := []string{}
	if m.Description != "" {
		parts = append(parts, firstLine(m.Description))
	}
	if len(m.Stack) > 0 {
		parts = append(parts, "stack: "+strings.Join(m.Stack, ", "))
	}
	if m.CurrentFocus != "" {
		parts = append(parts, "focus: "+m.CurrentFocus)
	}
	if len(v.tasks) > 0 {
		parts = append(parts, "next: "+v.tasks[0])
	}
	if len(parts) == 0 {
		return "[memex] no project memory yet"
	}
	return "[memex] " + strings.Join(parts, " | ")
}

func standard(m *memory.ProjectMemory, v view) string {
	var b strings.Builder
	b.WriteString("# Project memory (memex)\n")
	header(&b, m)
	list(&b, "Pending tasks", head(v.tasks, topN))
	list(&b, "Gotchas", head(v.gotchas, topN))
	if last := m.LastSession(); last != nil {
		fmt.Fprintf(&b, "\nLast session: %s\n", last.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func full(m *memory.ProjectMemory, v view) string {
	var b strings.Builder
	b.WriteString("# Project memory (memex)\n")
	header(&b, m)
	if len(m.FocusHistory) > 0 {
		fmt.Fprintf(&b, "Earlier focus: %s\n", strings.Join(m.FocusHistory, " → "))
	}
	list(&b, "Pending tasks", v.tasks)
	list(&b, "Gotchas", v.gotchas)

	if len(v.decisions) > 0 {
		b.WriteString("\n## Decisions\n")
		for _, d := range v.decisions {
			if d.Reason != "" {
				fmt.Fprintf(&b, "- %s (%s)\n", d.Decision, d.Reason)
			} else {
				fmt.Fprintf(&b, "- %s\n", d.Decision)
			}
		}
	}
	if len(v.files) > 0 {
		b.WriteString("\n## Important files\n")
		for _, f := range v.files {
			if f.Purpose != "" {
				fmt.Fprintf(&b, "- %s: %s\n", f.Path, f.Purpose)
			} else {
				fmt.Fprintf(&b, "- %s\n", f.Path)
			}
		}
	}
	if len(m.RecentSessions) > 0 {
		b.WriteString("\n## Recent sessions\n")
		for i := len(m.RecentSessions) - 1; i >= 0; i-- {
			s := m.RecentSessions[i]
			status := ""
			if s.Failed {
				status = " [failed]"
			}
			fmt.Fprintf(&b, "- %s%s: %s\n", s.StartedAt.Format("2006-01-02 15:04"), status, s.Summary)
		}
	}
	if len(m.LastConversationTurns) > 0 {
		b.WriteString("\n## Last conversation\n")
		for _, t := range m.LastConversationTurns {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func header(b *strings.Builder, m *memory.ProjectMemory) {
	if m.Description != "" {
		fmt.Fprintf(b, "%s\n", m.Description)
	}
	if len(m.Stack) > 0 {
		fmt.Fprintf(b, "Stack: %s\n", strings.Join(m.Stack, ", "))
	}
	if m.CurrentFocus != "" {
		fmt.Fprintf(b, "Current focus: %s\n", m.CurrentFocus)
	}
}

func list(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	return s
}

// focusWords splits focus into lowercase words longer than two characters.
func focusWords(focus string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(focus)) {
		if len([]rune(w)) > 2 {
			words = append(words, w)
		}
	}
	return words
}

// Score counts how many focus words appear in text, case-insensitively.
func Score(text string, words []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			n++
		}
	}
	return n
}

func rankStrings(items, words []string) []string {
	return rank(items, words, func(s string) string { return s })
}

// rank returns a copy of items sorted by descending Score, stable on ties.
func rank[T any](items []T, words []string, text func(T) string) []T {
	out := append([]T(nil), items...)
	scores := make(map[int]int, len(out))
	idx := make([]int, len(out))
	for i := range out {
		idx[i] = i
		scores[i] = Score(text(out[i]), words)
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	ranked := make([]T, len(out))
	for i, j := range idx {
		ranked[i] = out[j]
	}
	return ranked
}
