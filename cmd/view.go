package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/memex/internal/memory"
	"github.com/fakeyudi/memex/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Browse this project's memory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject()
		if err != nil {
			return err
		}
		m, err := p.loadMemory()
		if err != nil {
			return err
		}
		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			printMemory(cmd.OutOrStdout(), m)
			return nil
		}
		return tui.Run(m, p.Path)
	},
}

// printMemory writes a plain-text rendering of m.
func printMemory(w io.Writer, m *memory.ProjectMemory) {
	fmt.Fprintln(w, "## Project")
	fmt.Fprintf(w, "  Description:  %s\n", m.Description)
	if len(m.Stack) > 0 {
		fmt.Fprintf(w, "  Stack:        %s\n", strings.Join(m.Stack, ", "))
	}
	fmt.Fprintf(w, "  Focus:        %s\n", m.CurrentFocus)
	if !m.LastUpdated.IsZero() {
		fmt.Fprintf(w, "  Updated:      %s\n", m.LastUpdated.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintln(w)

	section(w, "Pending Tasks", m.PendingTasks, func(s string) string { return s })
	section(w, "Gotchas", m.Gotchas, func(s string) string { return s })
	section(w, "Decisions", m.Decisions, func(d memory.Decision) string {
		if d.Reason == "" {
			return d.Decision
		}
		return d.Decision + " (" + d.Reason + ")"
	})
	section(w, "Important Files", m.ImportantFiles, func(f memory.ImportantFile) string {
		if f.Purpose == "" {
			return f.Path
		}
		return f.Path + ": " + f.Purpose
	})
	section(w, "Recent Sessions", m.RecentSessions, func(s memory.SessionEntry) string {
		line := fmt.Sprintf("[%s] %s", s.StartedAt.Format("2006-01-02 15:04:05"), firstLine(s.Summary))
		if s.Failed {
			line += " (failed; log: " + s.LogPath + ")"
		}
		return line
	})

	fmt.Fprintln(w, "## Last Conversation")
	if len(m.LastConversationTurns) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, t := range m.LastConversationTurns {
		fmt.Fprintf(w, "  %s:\n%s\n", t.Role, indent(t.Content, "    "))
	}
	fmt.Fprintln(w)
}

func section[T any](w io.Writer, title string, items []T, line func(T) string) {
	fmt.Fprintf(w, "## %s\n", title)
	if len(items) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", line(it))
	}
	fmt.Fprintln(w)
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(s, "\n")
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
