// Package compress turns a finished session transcript into updated project
// memory through the external summarizer.
package compress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fakeyudi/memex/internal/gitctx"
	"github.com/fakeyudi/memex/internal/llm"
	"github.com/fakeyudi/memex/internal/memory"
	"github.com/fakeyudi/memex/internal/session"
	"github.com/fakeyudi/memex/internal/transcript"
	"github.com/fakeyudi/memex/internal/webhook"
)

const (
	// TooShortSummary is recorded for sessions below the minimum length.
	TooShortSummary = "(session too short to summarize)"

	DefaultMinLength = 50
	DefaultTailChars = 24000
)

// GitContext supplies repository state for the prompt.
type GitContext interface {
	GetContext(ctx context.Context, cwd string) *gitctx.Context
}

// Finalizer closes session records. Turns are already redacted.
type Finalizer interface {
	Finalize(id, summary string, failed bool, turns []transcript.Turn) (*session.Record, error)
}

// Notifier delivers webhook payloads without failing.
type Notifier interface {
	Fire(ctx context.Context, url string, payload webhook.Payload)
}

// Input is one compression request.
type Input struct {
	ProjectID   string
	ProjectPath string
	SessionID   string
	StartedAt   time.Time
	Transcript  string
	Turns       []transcript.Turn
	RawLogPath  string
	// Final closes the session. A snapshot (Final false) only refreshes
	// memory fields.
	Final bool
}

// Outcome describes a completed compression.
type Outcome struct {
	TooShort bool
	Summary  string
	Memory   *memory.ProjectMemory
	// ArchivedLog is set when the raw log was compressed away.
	ArchivedLog string
}

// Orchestrator runs compression for one project store. Store and Summarizer
// are required; everything else is optional.
type Orchestrator struct {
	Store      memory.Store
	Summarizer llm.Summarizer
	Git        GitContext
	Sessions   Finalizer
	Webhook    Notifier
	WebhookURL string
	// ArchiveLogs compresses the raw log after a successful final run.
	ArchiveLogs bool
	Log         *logrus.Entry
	Now         func() time.Time
	MinLength   int
	TailChars   int
}

// Compress runs the pipeline for in. A nil error with Outcome.TooShort set
// means the session was finalized without calling the summarizer. A *Error
// means the summarizer failed; the failure was recorded before returning.
func (o *Orchestrator) Compress(ctx context.Context, in Input) (*Outcome, error) {
	log := o.logger().WithFields(logrus.Fields{"session": in.SessionID, "final": in.Final})

	turns := RedactTurns(in.Turns)
	text := strings.TrimSpace(in.Transcript)
	if len(text) < o.minLength() {
		log.WithField("chars", len(text)).Info("transcript too short, skipping summarizer")
		if in.Final {
			o.finalize(in.SessionID, TooShortSummary, false, turns, log)
		}
		return &Outcome{TooShort: true, Summary: TooShortSummary}, nil
	}

	redacted := Redact(text)

	prior, err := o.Store.Load(in.ProjectID)
	hasPrior := err == nil
	if errors.Is(err, memory.ErrNotFound) {
		prior = o.Store.Init(in.ProjectID)
	} else if err != nil {
		return nil, fmt.Errorf("loading memory: %w", err)
	}

	var git *gitctx.Context
	if o.Git != nil && in.ProjectPath != "" {
		git = o.Git.GetContext(ctx, in.ProjectPath)
	}

	var existing *memory.ProjectMemory
	if hasPrior {
		existing = prior
	}
	msg := buildUserMessage(existing, git, redacted, o.tailChars())

	reply, err := o.Summarizer.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: msg}}, SystemPrompt)
	if err != nil {
		return nil, o.fail(ctx, in, prior, &Error{Kind: KindTransportFailure, Reason: err.Error(), RawLogPath: in.RawLogPath, Err: err}, log)
	}
	resp, err := parseResponse(reply)
	if err != nil {
		return nil, o.fail(ctx, in, prior, &Error{Kind: KindParseFailure, Reason: err.Error(), RawLogPath: in.RawLogPath, Err: err}, log)
	}

	now := o.now()
	m := prior.Clone()
	resp.apply(m)
	if len(turns) > 0 {
		m.SetTurns(turns)
	}
	m.LastUpdated = now

	summary := strings.TrimSpace(resp.SessionSummary)
	if summary == "" {
		summary = "(no summary returned)"
	}
	out := &Outcome{Summary: summary, Memory: m}

	if !in.Final {
		if err := o.Store.Save(in.ProjectID, m); err != nil {
			return nil, err
		}
		log.Info("snapshot compression saved")
		return out, nil
	}

	entry := memory.SessionEntry{
		ID:        in.SessionID,
		StartedAt: startedAt(in, now),
		EndedAt:   &now,
		Summary:   summary,
		LogPath:   in.RawLogPath,
	}
	// Re-running against an already closed session keeps its end time.
	for _, s := range prior.RecentSessions {
		if s.ID == in.SessionID && s.EndedAt != nil && !s.Failed {
			entry.EndedAt = s.EndedAt
		}
	}
	m.RecordSession(entry)
	if err := o.Store.Save(in.ProjectID, m); err != nil {
		return nil, err
	}
	o.finalize(in.SessionID, summary, false, turns, log)

	if o.ArchiveLogs && in.RawLogPath != "" && !strings.HasSuffix(in.RawLogPath, ".zst") {
		if archived, err := session.ArchiveLog(in.RawLogPath); err != nil {
			log.WithError(err).Warn("archiving raw log")
		} else {
			out.ArchivedLog = archived
			entry.LogPath = archived
			m.RecordSession(entry)
			if err := o.Store.Save(in.ProjectID, m); err != nil {
				log.WithError(err).Warn("recording archived log path")
			}
		}
	}

	o.notify(ctx, in, summary, false)
	log.WithField("summary_chars", len(summary)).Info("session compressed")
	return out, nil
}

// fail records a failed final session and returns cerr. Snapshots leave
// memory untouched.
func (o *Orchestrator) fail(ctx context.Context, in Input, prior *memory.ProjectMemory, cerr *Error, log *logrus.Entry) error {
	log.WithError(cerr).Warn("compression failed")
	if !in.Final {
		return cerr
	}

	now := o.now()
	m := prior.Clone()
	summary := "compression failed: " + cerr.Reason
	m.RecordSession(memory.SessionEntry{
		ID:            in.SessionID,
		StartedAt:     startedAt(in, now),
		EndedAt:       &now,
		Summary:       summary,
		LogPath:       in.RawLogPath,
		Failed:        true,
		FailureReason: cerr.Reason,
	})
	m.LastUpdated = now
	if err := o.Store.Save(in.ProjectID, m); err != nil {
		log.WithError(err).Error("persisting failed session entry")
	}
	o.finalize(in.SessionID, summary, true, RedactTurns(in.Turns), log)
	o.notify(ctx, in, summary, true)
	return cerr
}

func (o *Orchestrator) finalize(id, summary string, failed bool, turns []transcript.Turn, log *logrus.Entry) {
	if o.Sessions == nil || id == "" {
		return
	}
	if len(turns) == 0 {
		turns = nil
	}
	if _, err := o.Sessions.Finalize(id, summary, failed, turns); err != nil {
		log.WithError(err).Warn("finalizing session record")
	}
}

func (o *Orchestrator) notify(ctx context.Context, in Input, summary string, failed bool) {
	if o.Webhook == nil || o.WebhookURL == "" {
		return
	}
	o.Webhook.Fire(ctx, o.WebhookURL, webhook.Payload{
		Event:       "session.compressed",
		ProjectPath: in.ProjectPath,
		SessionID:   in.SessionID,
		Summary:     summary,
		Failed:      failed,
		Timestamp:   o.now(),
	})
}

func startedAt(in Input, now time.Time) time.Time {
	if in.StartedAt.IsZero() || in.StartedAt.After(now) {
		return now
	}
	return in.StartedAt
}

func (o *Orchestrator) logger() *logrus.Entry {
	if o.Log != nil {
		return o.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) minLength() int {
	if o.MinLength > 0 {
		return o.MinLength
	}
	return DefaultMinLength
}

func (o *Orchestrator) tailChars() int {
	if o.TailChars > 0 {
		return o.TailChars
	}
	return DefaultTailChars
}
