package supervisor_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/memex/internal/session"
	"github.com/fakeyudi/memex/internal/supervisor"
)

type fakeProc struct {
	mu     sync.Mutex
	writes []string
	kills  atomic.Int32
	done   chan struct{}
	once   sync.Once
	code   int
	// onWrite runs after every write.
	onWrite func()
}

func newFakeProc(code int) *fakeProc { return &fakeProc{done: make(chan struct{}), code: code} }

func (p *fakeProc) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.writes = append(p.writes, string(b))
	p.mu.Unlock()
	if p.onWrite != nil {
		p.onWrite()
	}
	return len(b), nil
}

func (p *fakeProc) Kill() error {
	p.kills.Add(1)
	p.exit()
	return nil
}

func (p *fakeProc) exit() { p.once.Do(func() { close(p.done) }) }

func (p *fakeProc) Wait() (int, error) {
	<-p.done
	if p.kills.Load() > 0 {
		return 143, nil
	}
	return p.code, nil
}

func (p *fakeProc) written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

type fakeStrategy struct {
	name     string
	startErr error
	proc     *fakeProc
	output   string
	started  atomic.Int32
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Start(_ context.Context, spec supervisor.Spec) (supervisor.Process, error) {
	s.started.Add(1)
	if s.startErr != nil {
		return nil, &supervisor.RecorderUnavailableError{Strategy: s.name, Cause: s.startErr}
	}
	if s.output != "" {
		if err := os.WriteFile(spec.RawLogPath, []byte(s.output), 0o600); err != nil {
			return nil, err
		}
		spec.Transcript.RecordOutput([]byte(s.output))
	}
	return s.proc, nil
}

func executable(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return p
}

func newSupervisor(t *testing.T, strategies ...supervisor.Strategy) (*supervisor.Supervisor, *test.Hook) {
	t.Helper()
	bin := t.TempDir()
	executable(t, bin, "agent")
	logger, hook := test.NewNullLogger()
	return &supervisor.Supervisor{
		Resolver: &supervisor.Resolver{
			Shell:  "/bin/sh",
			Lookup: func(context.Context, string, string) (string, error) { return "", errors.New("no login shell") },
			Dirs:   []string{bin},
		},
		Strategies: strategies,
		Log:        logrus.NewEntry(logger),
		Signals:    []os.Signal{},
	}, hook
}

func TestRunFallsBackWhenRecorderUnavailable(t *testing.T) {
	proc := newFakeProc(0)
	proc.exit()
	broken := &fakeStrategy{name: "pty", startErr: errors.New("no /dev/ptmx")}
	direct := &fakeStrategy{name: "direct", proc: proc}
	sup, hook := newSupervisor(t, broken, direct)

	res, err := sup.Run(context.Background(), supervisor.Options{Command: "agent", LogDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "direct", res.Strategy)
	assert.Equal(t, int32(1), broken.started.Load())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["strategy"] == "pty" {
			warned = true
		}
	}
	assert.True(t, warned, "recorder failure should be logged")
}

func TestRunFailsWhenNoStrategyStarts(t *testing.T) {
	sup, _ := newSupervisor(t,
		&fakeStrategy{name: "pty", startErr: errors.New("boom")},
		&fakeStrategy{name: "direct", startErr: errors.New("exec format error")},
	)
	_, err := sup.Run(context.Background(), supervisor.Options{Command: "agent", LogDir: t.TempDir()})

	var se *supervisor.StartError
	require.ErrorAs(t, err, &se)
	assert.True(t, strings.HasSuffix(se.Path, "agent"))
	assert.NotEmpty(t, se.Remediation)
	assert.Contains(t, err.Error(), se.Path)
}

func TestRunReportsLogPathsBeforeStart(t *testing.T) {
	proc := newFakeProc(0)
	proc.exit()
	strat := &fakeStrategy{name: "pty", proc: proc, output: "\x1b[1mhello there\x1b[0m\r\n\r\n\r\n\r\nbye\r\n"}
	sup, _ := newSupervisor(t, strat)

	var raw, structured string
	res, err := sup.Run(context.Background(), supervisor.Options{
		Command: "agent",
		LogDir:  t.TempDir(),
		OnLogPaths: func(r, s string) error {
			assert.Equal(t, int32(0), strat.started.Load(), "paths must be reported before the agent starts")
			raw, structured = r, s
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, raw, res.RawLogPath)
	assert.Equal(t, structured, res.StructuredLogPath)
	assert.True(t, strings.HasSuffix(raw, ".raw.log"))
	assert.True(t, strings.HasSuffix(structured, ".jsonl"))
	assert.Equal(t, "hello there\n\nbye", res.Transcript)
	assert.False(t, res.Abrupt)
	require.Len(t, res.Entries, 1)
}

func TestRunAbortsWhenMarkerCannotBeWritten(t *testing.T) {
	strat := &fakeStrategy{name: "pty", proc: newFakeProc(0)}
	sup, _ := newSupervisor(t, strat)
	_, err := sup.Run(context.Background(), supervisor.Options{
		Command:    "agent",
		LogDir:     t.TempDir(),
		OnLogPaths: func(string, string) error { return errors.New("read-only filesystem") },
	})
	require.Error(t, err)
	assert.Equal(t, int32(0), strat.started.Load())
}

func TestRunShutdownIsIdempotent(t *testing.T) {
	proc := newFakeProc(0)
	sup, _ := newSupervisor(t, &fakeStrategy{name: "pty", proc: proc})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
		cancel()
	}()
	res, err := sup.Run(ctx, supervisor.Options{Command: "agent", LogDir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, res.Abrupt)
	assert.Equal(t, 143, res.ExitCode)
	assert.Equal(t, int32(1), proc.kills.Load())
}

// signalChildEnv carries the tracker directory to the re-executed test
// binary in TestSecondSignalAfterShutdownIsIgnored.
const signalChildEnv = "MEMEX_SIGNAL_CHILD_DIR"

// The parent re-runs this test in a child process that receives real
// termination signals: one while the agent runs and more after Run returns.
// The child must live long enough to write its pending marker.
func TestSecondSignalAfterShutdownIsIgnored(t *testing.T) {
	if dir := os.Getenv(signalChildEnv); dir != "" {
		signalChild(t, dir)
		return
	}

	dir := t.TempDir()
	cmd := exec.Command(os.Args[0], "-test.run=^TestSecondSignalAfterShutdownIsIgnored$", "-test.v")
	cmd.Env = append(os.Environ(), signalChildEnv+"="+dir)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "child output:\n%s", out)
	assert.Contains(t, string(out), "abrupt=true")
	assert.Contains(t, string(out), "SURVIVED")

	tr, err := session.NewTracker(dir)
	require.NoError(t, err)
	m, err := tr.LoadPending()
	require.NoError(t, err, "pending marker must be written after the second signal")
	assert.Equal(t, "signalled", m.SessionID)
}

func signalChild(t *testing.T, dir string) {
	self := os.Getpid()
	proc := newFakeProc(0)
	var sent sync.Once
	// The inject write happens after the handlers are installed, so the
	// first signal lands while the agent is still running.
	proc.onWrite = func() {
		sent.Do(func() { syscall.Kill(self, syscall.SIGTERM) })
	}
	sup, _ := newSupervisor(t, &fakeStrategy{name: "pty", proc: proc})
	sup.Signals = supervisor.ShutdownSignals

	res, err := sup.Run(context.Background(), supervisor.Options{
		Command:     "agent",
		LogDir:      t.TempDir(),
		Inject:      "resume",
		InjectDelay: time.Millisecond,
	})
	require.NoError(t, err)
	fmt.Printf("abrupt=%v\n", res.Abrupt)

	for _, sig := range []syscall.Signal{syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT, syscall.SIGPIPE} {
		require.NoError(t, syscall.Kill(self, sig))
	}
	time.Sleep(200 * time.Millisecond)

	tr, err := session.NewTracker(dir)
	require.NoError(t, err)
	require.NoError(t, tr.WritePending(session.PendingMarker{SessionID: "signalled", RawLogPath: res.RawLogPath}))
	fmt.Println("SURVIVED")
}

func TestRunInjectsMessage(t *testing.T) {
	proc := newFakeProc(0)
	sup, _ := newSupervisor(t, &fakeStrategy{name: "pty", proc: proc})

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if len(proc.written()) >= 2 {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		// Let the inject callback record the input before the agent exits.
		time.Sleep(50 * time.Millisecond)
		proc.exit()
	}()

	res, err := sup.Run(context.Background(), supervisor.Options{
		Command:     "agent",
		LogDir:      t.TempDir(),
		Inject:      "resume from memory",
		InjectDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"resume from memory", "\r"}, proc.written())
	require.NotEmpty(t, res.Entries)
	assert.Equal(t, "resume from memory", res.Entries[0].NormalizedText)
}

func TestRunExecutableNotFound(t *testing.T) {
	sup, _ := newSupervisor(t, &fakeStrategy{name: "pty", proc: newFakeProc(0)})
	_, err := sup.Run(context.Background(), supervisor.Options{Command: "claude", LogDir: t.TempDir()})

	var nf *supervisor.ExecutableNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "npm install -g @anthropic-ai/claude-code", nf.Remediation)
	assert.Contains(t, err.Error(), "npm install -g")
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	onPath := executable(t, dir, "found")
	fallbackDir := t.TempDir()
	inFallback := executable(t, fallbackDir, "fallback")

	r := &supervisor.Resolver{
		Shell: "/bin/sh",
		Lookup: func(_ context.Context, _ string, name string) (string, error) {
			if name == "found" {
				return "Welcome to your shell!\n" + onPath + "\n", nil
			}
			return "", errors.New("exit status 1")
		},
		Dirs: []string{t.TempDir(), fallbackDir},
	}

	got, err := r.Resolve(context.Background(), "found")
	require.NoError(t, err)
	assert.Equal(t, onPath, got)

	got, err = r.Resolve(context.Background(), "fallback")
	require.NoError(t, err)
	assert.Equal(t, inFallback, got)

	got, err = r.Resolve(context.Background(), onPath)
	require.NoError(t, err)
	assert.Equal(t, onPath, got)

	_, err = r.Resolve(context.Background(), "missing")
	var nf *supervisor.ExecutableNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Len(t, nf.Attempted, 3)
}

func TestSanitizeEnv(t *testing.T) {
	env := []string{
		"PATH=/usr/bin",
		"ANTHROPIC_API_KEY=sk-ant",
		"OPENAI_API_KEY=sk-oai",
		"MEMEX_API_KEY=sk-mx",
		"ANTHROPIC_API_KEY_HINT=kept",
		"HOME=/home/dev",
	}
	assert.Equal(t, []string{"PATH=/usr/bin", "ANTHROPIC_API_KEY_HINT=kept", "HOME=/home/dev"}, supervisor.SanitizeEnv(env))
}

func TestDirectExitCodes(t *testing.T) {
	var out bytes.Buffer
	d := &supervisor.Direct{Stdout: &out, Stderr: &out}

	proc, err := d.Start(context.Background(), supervisor.Spec{Path: "/bin/sh", Args: []string{"-c", "exit 3"}})
	require.NoError(t, err)
	code, err := proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	proc, err = d.Start(context.Background(), supervisor.Spec{Path: "/bin/sh", Args: []string{"-c", "kill -9 $$"}})
	require.NoError(t, err)
	code, err = proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 137, code)

	_, err = proc.Write([]byte("x"))
	assert.ErrorIs(t, err, supervisor.ErrNoInput)
}

func TestDirectStripsCredentials(t *testing.T) {
	var out bytes.Buffer
	d := &supervisor.Direct{Stdout: &out, Stderr: &out}
	proc, err := d.Start(context.Background(), supervisor.Spec{
		Path: "/bin/sh",
		Args: []string{"-c", `echo "key=${ANTHROPIC_API_KEY:-unset}"`},
		Env:  []string{"PATH=/usr/bin:/bin", "ANTHROPIC_API_KEY=secret"},
	})
	require.NoError(t, err)
	_, err = proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, "key=unset\n", out.String())
}
