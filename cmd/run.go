package cmd

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/memex/internal/compress"
	"github.com/fakeyudi/memex/internal/contextpack"
	"github.com/fakeyudi/memex/internal/logging"
	"github.com/fakeyudi/memex/internal/session"
	"github.com/fakeyudi/memex/internal/supervisor"
	"github.com/fakeyudi/memex/internal/transcript"
)

var runCmd = &cobra.Command{
	Use:   "run [-- agent args...]",
	Short: "Start the configured agent and record the session",
	RunE:  runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	orch := p.orchestrator()
	log := p.logger("run")

	// Recovery always runs before a new session can write markers.
	if _, err := recoverPending(ctx, cmd, p, orch); err != nil {
		return err
	}

	id := uuid.NewString()
	started := time.Now().UTC()
	rec := &session.Record{
		ID:           id,
		ProjectPath:  p.Path,
		AgentCommand: cfg.AgentCommand,
		StartedAt:    started,
	}
	if err := p.Tracker.SaveRecord(rec); err != nil {
		return err
	}

	sup := supervisor.New(logging.Component("supervisor"))
	res, err := sup.Run(ctx, supervisor.Options{
		Command:     cfg.AgentCommand,
		Args:        append(append([]string{}, cfg.AgentArgs...), args...),
		Dir:         p.Path,
		LogDir:      p.Tracker.LogDir(),
		Inject:      resumeContext(p),
		InjectDelay: cfg.InjectDelay(),
		OnLogPaths: func(raw, structured string) error {
			rec.LogPath = raw
			if err := p.Tracker.SaveRecord(rec); err != nil {
				return err
			}
			return p.Tracker.WriteActive(session.ActiveMarker{
				SessionID:         id,
				RawLogPath:        raw,
				StructuredLogPath: structured,
				PID:               os.Getpid(),
				StartedAt:         started,
			})
		},
	})
	if err != nil {
		if cerr := p.Tracker.ClearActive(); cerr != nil {
			log.WithError(cerr).Warn("clearing active marker")
		}
		if _, ferr := p.Tracker.Finalize(id, "agent did not start", true, nil); ferr != nil {
			log.WithError(ferr).Warn("finalizing session record")
		}
		return err
	}

	if err := handOff(ctx, cmd, p, orch, id, started, res); err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return exitCodeError(res.ExitCode)
	}
	return nil
}

// handOff moves a finished session from the active marker to the pending
// marker and runs the final compression. The active marker is removed even
// when the pending marker cannot be written; compression still runs from
// the in-memory result in that case.
func handOff(ctx context.Context, cmd *cobra.Command, p *project, orch *compress.Orchestrator, id string, started time.Time, res *supervisor.Result) error {
	log := p.logger("run").WithField("session", id)

	// The pending marker goes down before the active marker is removed so a
	// crash between the two still leaves a recoverable session behind.
	pendingErr := p.Tracker.WritePending(session.PendingMarker{
		RawLogPath:        res.RawLogPath,
		StructuredLogPath: res.StructuredLogPath,
		SessionID:         id,
	})
	if pendingErr != nil {
		log.WithError(pendingErr).Error("writing pending marker")
		cmd.PrintErrf("memex: warning: pending marker not written: %v\n", pendingErr)
	}
	if err := p.Tracker.ClearActive(); err != nil {
		log.WithError(err).Warn("clearing active marker")
	}

	log.WithFields(logrus.Fields{
		"exit":     res.ExitCode,
		"strategy": res.Strategy,
		"abrupt":   res.Abrupt,
	}).Info("agent exited")

	out, err := orch.Compress(context.WithoutCancel(ctx), compress.Input{
		ProjectID:   p.ID,
		ProjectPath: p.Path,
		SessionID:   id,
		StartedAt:   started,
		Transcript:  res.Transcript,
		Turns:       transcript.Turns(res.Entries),
		RawLogPath:  res.RawLogPath,
		Final:       true,
	})
	if err := reportCompression(cmd, out, err); err != nil {
		return err
	}
	if pendingErr != nil {
		return nil
	}
	return p.Tracker.ClearPending()
}

// resumeContext renders the inject-on-ready message, or "" when memory is
// missing or injection is off.
func resumeContext(p *project) string {
	if !cfg.InjectEnabled() {
		return ""
	}
	m, err := p.Store.Load(p.ID)
	if err != nil {
		return ""
	}
	return contextpack.Build(m, contextpack.Options{
		Tier:   contextpack.Tier(cfg.ContextTier),
		Budget: contextpack.BudgetFromTokens(cfg.ContextTokenLimit),
	})
}

// reportCompression prints the outcome of a final compression. A recorded
// compression failure is reported with its remediation and is not returned;
// any other error is.
func reportCompression(cmd *cobra.Command, out *compress.Outcome, err error) error {
	var cerr *compress.Error
	switch {
	case errors.As(err, &cerr):
		cmd.PrintErrf("memex: %v\n", cerr)
		cmd.PrintErrf("memex: raw log kept; re-run with: %s\n", cerr.Remediation())
		return nil
	case err != nil:
		return err
	case out.TooShort:
		cmd.PrintErrln("memex: session too short to summarize")
	default:
		cmd.PrintErrf("memex: session saved: %s\n", out.Summary)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.RunE = runAgent
	rootCmd.Args = cobra.ArbitraryArgs
}
