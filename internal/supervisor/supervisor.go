// Package supervisor launches the wrapped agent, captures its terminal I/O
// and survives being killed with enough state left behind to recover.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fakeyudi/memex/internal/transcript"
)

// ShutdownSignals trigger the graceful shutdown sequence.
var ShutdownSignals = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}

// Options configures one supervised run.
type Options struct {
	Command string
	Args    []string
	Dir     string
	// Env defaults to os.Environ().
	Env    []string
	LogDir string

	// Inject is typed into the agent after InjectDelay, followed by Enter.
	Inject      string
	InjectDelay time.Duration

	// OnLogPaths runs once log paths are known and before the agent starts.
	// An error aborts the run.
	OnLogPaths func(rawLogPath, structuredLogPath string) error
}

// Result is what a finished run hands to compression.
type Result struct {
	ExitCode          int
	Transcript        string
	Entries           []transcript.Entry
	RawLogPath        string
	StructuredLogPath string
	// Abrupt is true when the run ended because of a termination signal.
	Abrupt   bool
	Strategy string
}

// Supervisor runs agents. The zero value is not usable; call New.
type Supervisor struct {
	Resolver   *Resolver
	Strategies []Strategy
	Log        *logrus.Entry
	Now        func() time.Time
	// Signals defaults to ShutdownSignals. Tests set it empty and cancel
	// the context instead.
	Signals []os.Signal
}

// New returns a Supervisor using the PTY recorder with direct spawn as the
// fallback.
func New(log *logrus.Entry) *Supervisor {
	return &Supervisor{
		Resolver:   NewResolver(),
		Strategies: []Strategy{NewRecorder(), NewDirect()},
		Log:        log,
		Now:        time.Now,
		Signals:    ShutdownSignals,
	}
}

// Run resolves, starts and supervises the agent until it exits. Cancelling
// ctx or receiving a shutdown signal terminates the agent once; a second
// signal is ignored. Capture is always closed out before Run returns.
func (s *Supervisor) Run(ctx context.Context, opts Options) (*Result, error) {
	log := s.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}

	path, err := s.Resolver.Resolve(ctx, opts.Command)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	stamp := now().UTC().Format("20060102T150405.000Z")
	res := &Result{
		RawLogPath:        filepath.Join(opts.LogDir, stamp+".raw.log"),
		StructuredLogPath: filepath.Join(opts.LogDir, stamp+".jsonl"),
	}

	jsonl, err := os.OpenFile(res.StructuredLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening structured log: %w", err)
	}
	defer jsonl.Close()
	tl := transcript.NewLogger(jsonl)

	if opts.OnLogPaths != nil {
		if err := opts.OnLogPaths(res.RawLogPath, res.StructuredLogPath); err != nil {
			return nil, err
		}
	}

	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	spec := Spec{
		Path:       path,
		Args:       opts.Args,
		Dir:        opts.Dir,
		Env:        env,
		RawLogPath: res.RawLogPath,
		Transcript: tl,
	}

	proc, strategy, err := s.start(ctx, spec, log)
	if err != nil {
		return nil, err
	}
	res.Strategy = strategy
	log.WithFields(logrus.Fields{"path": path, "strategy": strategy}).Info("agent started")

	sigs := s.Signals
	if sigs == nil {
		sigs = ShutdownSignals
	}
	shutdownCtx, stop := ctx, func() {}
	if len(sigs) > 0 {
		shutdownCtx, stop = signal.NotifyContext(ctx, sigs...)
		signal.Ignore(syscall.SIGPIPE)
	}
	defer stop()

	var abrupt atomic.Bool
	var once sync.Once
	exited := make(chan struct{})
	go func() {
		select {
		case <-shutdownCtx.Done():
			once.Do(func() {
				abrupt.Store(true)
				// Shutdown has begun. Further termination signals are ignored
				// for the rest of the process so the hand-off to compression
				// after Run returns cannot be cut short. The deferred stop
				// leaves ignored signals alone.
				if len(sigs) > 0 {
					signal.Ignore(sigs...)
				}
				log.Info("shutdown requested, terminating agent")
				if err := proc.Kill(); err != nil {
					log.WithError(err).Warn("terminating agent")
				}
			})
		case <-exited:
		}
	}()

	if opts.Inject != "" {
		timer := time.AfterFunc(opts.InjectDelay, func() {
			if err := inject(proc, tl, opts.Inject); err != nil {
				log.WithError(err).Debug("inject-on-ready skipped")
			}
		})
		defer timer.Stop()
	}

	code, waitErr := proc.Wait()
	close(exited)
	tl.Flush()
	if err := tl.Err(); err != nil {
		log.WithError(err).Warn("structured log incomplete")
	}

	res.ExitCode = code
	res.Abrupt = abrupt.Load()
	res.Entries = tl.Entries()
	res.Transcript = cleanedTranscript(res.RawLogPath, tl)
	if waitErr != nil {
		log.WithError(waitErr).Warn("waiting for agent")
	}
	log.WithFields(logrus.Fields{"exit_code": code, "abrupt": res.Abrupt, "chars": len(res.Transcript)}).Info("agent exited")
	return res, nil
}

func (s *Supervisor) start(ctx context.Context, spec Spec, log *logrus.Entry) (Process, string, error) {
	var lastErr error
	for _, st := range s.Strategies {
		proc, err := st.Start(ctx, spec)
		if err == nil {
			return proc, st.Name(), nil
		}
		lastErr = err
		log.WithError(err).WithField("strategy", st.Name()).Warn("capture strategy failed to start")
	}
	if lastErr == nil {
		lastErr = errors.New("no capture strategies configured")
	}
	return nil, "", &StartError{Path: spec.Path, Remediation: Remediation(spec.Path), Err: lastErr}
}

func inject(proc Process, tl *transcript.Logger, msg string) error {
	if _, err := proc.Write([]byte(msg)); err != nil {
		return err
	}
	if _, err := proc.Write([]byte("\r")); err != nil {
		return err
	}
	tl.RecordInput([]byte(msg + "\r"))
	return nil
}

// cleanedTranscript prefers the raw capture and falls back to the structured
// entries when the raw file is missing or empty.
func cleanedTranscript(rawPath string, tl *transcript.Logger) string {
	if text, err := transcript.ReadRawFile(rawPath); err == nil && text != "" {
		return text
	}
	return tl.Flat()
}
