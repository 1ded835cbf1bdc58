package cmd

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/memex/internal/memory"
)

var (
	noteGotcha   bool
	noteDecision bool
	noteReason   string
)

var noteCmd = &cobra.Command{
	Use:   "note <text>",
	Short: "Add a pending task, gotcha or decision to project memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if noteGotcha && noteDecision {
			return errors.New("--gotcha and --decision are mutually exclusive")
		}
		text := strings.TrimSpace(args[0])
		if text == "" {
			return errors.New("note text is empty")
		}

		p, err := openProject()
		if err != nil {
			return err
		}
		m, err := p.Store.Load(p.ID)
		if errors.Is(err, memory.ErrNotFound) {
			m = p.Store.Init(p.ID)
		} else if err != nil {
			return err
		}

		kind := "Task"
		switch {
		case noteGotcha:
			kind = "Gotcha"
			m.Gotchas = append(m.Gotchas, text)
		case noteDecision:
			kind = "Decision"
			m.Decisions = append(m.Decisions, memory.Decision{Decision: text, Reason: strings.TrimSpace(noteReason)})
		default:
			m.PendingTasks = append(m.PendingTasks, text)
		}
		m.LastUpdated = time.Now().UTC()

		if err := p.Store.Save(p.ID, m); err != nil {
			return err
		}
		cmd.Printf("%s added.\n", kind)
		return nil
	},
}

func init() {
	noteCmd.Flags().BoolVar(&noteGotcha, "gotcha", false, "record a gotcha instead of a task")
	noteCmd.Flags().BoolVar(&noteDecision, "decision", false, "record a decision instead of a task")
	noteCmd.Flags().StringVar(&noteReason, "reason", "", "reason for a --decision")
	rootCmd.AddCommand(noteCmd)
}
