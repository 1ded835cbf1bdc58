package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/memex/internal/memory"
	"github.com/fakeyudi/memex/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session markers and memory for this project",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject()
		if err != nil {
			return err
		}

		cmd.Printf("Project: %s (%s)\n", p.Path, p.ID)

		active, err := p.Tracker.LoadActive()
		switch {
		case errors.Is(err, session.ErrNoMarker):
			cmd.Println("Active session: none")
		case err != nil:
			return err
		default:
			state := "running"
			if !session.IsProcessAlive(active.PID) {
				state = "stale, will be recovered"
			}
			cmd.Printf("Active session: %s (pid %d, %s, started %s ago)\n",
				active.SessionID, active.PID, state, time.Since(active.StartedAt).Round(time.Second))
		}

		pending, err := p.Tracker.LoadPending()
		switch {
		case errors.Is(err, session.ErrNoMarker):
		case err != nil:
			return err
		default:
			cmd.Printf("Pending compression: %s (%s)\n", pending.SessionID, pending.RawLogPath)
		}

		m, err := p.Store.Load(p.ID)
		if errors.Is(err, memory.ErrNotFound) {
			cmd.Println("no memory recorded yet")
			return nil
		}
		if err != nil {
			return err
		}

		if m.CurrentFocus != "" {
			cmd.Printf("Focus: %s\n", m.CurrentFocus)
		}
		cmd.Printf("Pending tasks: %d\n", len(m.PendingTasks))
		cmd.Printf("Gotchas: %d\n", len(m.Gotchas))
		cmd.Printf("Decisions: %d\n", len(m.Decisions))
		cmd.Printf("Sessions: %d\n", len(m.RecentSessions))
		if last := m.LastSession(); last != nil {
			mark := ""
			if last.Failed {
				mark = " [failed]"
			}
			cmd.Printf("Last session: %s%s\n", firstLine(last.Summary), mark)
		}
		if !m.LastUpdated.IsZero() {
			cmd.Printf("Updated: %s\n", m.LastUpdated.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
