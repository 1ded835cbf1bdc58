package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/memex/internal/compress"
	"github.com/fakeyudi/memex/internal/session"
	"github.com/fakeyudi/memex/internal/transcript"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Compress a session interrupted by a crash or kill",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject()
		if err != nil {
			return err
		}
		res, err := recoverPending(cmd.Context(), cmd, p, p.orchestrator())
		if err != nil {
			return err
		}
		switch {
		case res.Recovered:
			cmd.Printf("Recovered session %s\n", res.Marker.SessionID)
		case res.Stale:
			cmd.Println("Discarded a stale marker (log no longer exists)")
		case res.Live == nil:
			cmd.Println("nothing to recover")
		}
		return nil
	},
}

// recoverPending runs startup recovery for p. A compression failure during
// recovery is reported and counts as handled; it is never retried.
func recoverPending(ctx context.Context, cmd *cobra.Command, p *project, orch *compress.Orchestrator) (session.RecoveryResult, error) {
	log := p.logger("recover")
	res, err := p.Tracker.Recover(ctx, func(ctx context.Context, m session.PendingMarker) error {
		cmd.PrintErrf("memex: recovering interrupted session %s\n", m.SessionID)
		in, err := recoveryInput(p, m)
		if err != nil {
			return err
		}
		out, err := orch.Compress(ctx, in)
		return reportCompression(cmd, out, err)
	})
	if res.Stale {
		log.Info("discarded stale session marker")
	}
	if res.Live != nil {
		log.WithField("pid", res.Live.PID).Warn("another session is active for this project")
		cmd.PrintErrf("memex: warning: session %s (pid %d) is still running in this project\n", res.Live.SessionID, res.Live.PID)
	}
	return res, err
}

// recoveryInput rebuilds a compression request from the logs a marker
// points at. Turns come from the structured log; the transcript prefers the
// cleaned raw capture and falls back to the structured entries.
func recoveryInput(p *project, m session.PendingMarker) (compress.Input, error) {
	entries, err := transcript.ReadLogFile(m.StructuredLogPath)
	if err != nil {
		p.logger("recover").WithError(err).Warn("reading structured log")
		entries = nil
	}
	text, err := transcript.ReadRawFile(m.RawLogPath)
	if err != nil {
		if len(entries) == 0 {
			return compress.Input{}, err
		}
		text = transcript.Flat(entries)
	}
	in := compress.Input{
		ProjectID:   p.ID,
		ProjectPath: p.Path,
		SessionID:   m.SessionID,
		Transcript:  text,
		Turns:       transcript.Turns(entries),
		RawLogPath:  m.RawLogPath,
		Final:       true,
	}
	if rec, err := p.Tracker.LoadRecord(m.SessionID); err == nil {
		in.StartedAt = rec.StartedAt
	} else if !errors.Is(err, session.ErrNoRecord) {
		return compress.Input{}, err
	}
	return in, nil
}

// structuredPathFor maps a raw capture path to its structured log.
func structuredPathFor(raw string) string {
	raw = strings.TrimSuffix(raw, ".zst")
	return strings.TrimSuffix(raw, ".raw.log") + ".jsonl"
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}
