package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/memex/internal/compress"
	"github.com/fakeyudi/memex/internal/llm"
	"github.com/fakeyudi/memex/internal/memory"
	"github.com/fakeyudi/memex/internal/session"
	"github.com/fakeyudi/memex/internal/transcript"
)

var snapshotCompress bool

var compressCmd = &cobra.Command{
	Use:   "compress [raw-log]",
	Short: "Re-run compression for a preserved session log",
	Long: `compress summarizes a raw capture log into project memory. With no
argument it uses the pending session, then the newest failed session. With
--snapshot it refreshes memory from the running session without closing it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject()
		if err != nil {
			return err
		}
		in, err := compressTarget(p, args, snapshotCompress)
		if err != nil {
			return err
		}
		in.Transcript, err = readTranscript(in.RawLogPath)
		if err != nil {
			return err
		}
		if entries, err := transcript.ReadLogFile(structuredPathFor(in.RawLogPath)); err == nil {
			in.Turns = transcript.Turns(entries)
		}

		out, err := p.orchestrator().Compress(context.WithoutCancel(cmd.Context()), in)
		var cerr *compress.Error
		if errors.As(err, &cerr) {
			return fmt.Errorf("%w (raw log kept at %s)", cerr, cerr.RawLogPath)
		}
		if err != nil {
			return err
		}
		if in.Final {
			if pending, err := p.Tracker.LoadPending(); err == nil && pending.SessionID == in.SessionID {
				if err := p.Tracker.ClearPending(); err != nil {
					return err
				}
			}
		}
		switch {
		case out.TooShort:
			cmd.Println("Session too short to summarize.")
		case in.Final:
			cmd.Printf("Session %s compressed: %s\n", in.SessionID, out.Summary)
		default:
			cmd.Println("Snapshot saved.")
		}
		return nil
	},
}

// compressTarget picks the session a compress invocation applies to.
func compressTarget(p *project, args []string, snapshot bool) (compress.Input, error) {
	in := compress.Input{ProjectID: p.ID, ProjectPath: p.Path, Final: !snapshot}

	if snapshot {
		active, err := p.Tracker.LoadActive()
		if errors.Is(err, session.ErrNoMarker) {
			return in, errors.New("no active session to snapshot")
		} else if err != nil {
			return in, err
		}
		in.SessionID = active.SessionID
		in.StartedAt = active.StartedAt
		in.RawLogPath = active.RawLogPath
		return in, nil
	}

	m, err := p.Store.Load(p.ID)
	if err != nil && !errors.Is(err, memory.ErrNotFound) {
		return in, err
	}

	if len(args) == 1 {
		raw, err := filepath.Abs(args[0])
		if err != nil {
			return in, err
		}
		in.RawLogPath = raw
		if e := sessionForLog(m, raw); e != nil {
			in.SessionID, in.StartedAt = e.ID, e.StartedAt
		}
	} else if pending, err := p.Tracker.LoadPending(); err == nil {
		in.SessionID, in.RawLogPath = pending.SessionID, pending.RawLogPath
	} else if e := lastFailed(m); e != nil {
		in.SessionID, in.StartedAt, in.RawLogPath = e.ID, e.StartedAt, e.LogPath
	} else {
		return in, errors.New("no session to compress; pass a raw log path")
	}

	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}
	if in.StartedAt.IsZero() {
		if rec, err := p.Tracker.LoadRecord(in.SessionID); err == nil {
			in.StartedAt = rec.StartedAt
		}
	}
	return in, nil
}

func sessionForLog(m *memory.ProjectMemory, raw string) *memory.SessionEntry {
	if m == nil {
		return nil
	}
	for i := range m.RecentSessions {
		if lp := m.RecentSessions[i].LogPath; lp == raw || strings.TrimSuffix(lp, ".zst") == strings.TrimSuffix(raw, ".zst") {
			return &m.RecentSessions[i]
		}
	}
	return nil
}

func lastFailed(m *memory.ProjectMemory) *memory.SessionEntry {
	if m == nil {
		return nil
	}
	for i := len(m.RecentSessions) - 1; i >= 0; i-- {
		if m.RecentSessions[i].Failed && m.RecentSessions[i].LogPath != "" {
			return &m.RecentSessions[i]
		}
	}
	return nil
}

// readTranscript returns the cleaned text of a raw capture, decompressing
// archived logs first.
func readTranscript(path string) (string, error) {
	if strings.HasSuffix(path, ".zst") {
		data, err := session.ReadArchivedLog(path)
		if err != nil {
			return "", err
		}
		return transcript.Clean(string(data)), nil
	}
	return transcript.ReadRawFile(path)
}

// unavailable stands in for a summarizer that could not be configured.
type unavailable struct{ err error }

func (u unavailable) Complete(context.Context, []llm.Message, string) (string, error) {
	return "", u.err
}

func init() {
	compressCmd.Flags().BoolVar(&snapshotCompress, "snapshot", false, "refresh memory from the active session without closing it")
	rootCmd.AddCommand(compressCmd)
}
