package supervisor

import (
	"context"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// drainTimeout bounds how long Wait keeps reading output after the agent
// exits. Grandchildren holding the pty open would otherwise block forever.
const drainTimeout = 2 * time.Second

// inputStopTimeout bounds how long close waits for the stdin reader to
// notice it was canceled.
const inputStopTimeout = 500 * time.Millisecond

// Recorder runs the agent on a pseudo-terminal inside a login shell and tees
// everything to the raw capture file and the transcript logger while the
// user's terminal stays attached.
type Recorder struct {
	Shell  string
	Stdin  *os.File
	Stdout io.Writer
}

// NewRecorder returns a Recorder bound to the process's own terminal.
func NewRecorder() *Recorder {
	return &Recorder{Shell: loginShell(), Stdin: os.Stdin, Stdout: os.Stdout}
}

func (r *Recorder) Name() string { return "pty" }

func (r *Recorder) Start(ctx context.Context, spec Spec) (Process, error) {
	shell := r.Shell
	if shell == "" {
		shell = loginShell()
	}
	raw, err := os.OpenFile(spec.RawLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, &RecorderUnavailableError{Strategy: r.Name(), Cause: err}
	}

	cmd := exec.Command(shell, "-l", "-c", unsetScript(spec.Path, spec.Args))
	cmd.Dir = spec.Dir
	cmd.Env = SanitizeEnv(spec.Env)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		raw.Close()
		return nil, &RecorderUnavailableError{Strategy: r.Name(), Cause: err}
	}

	p := &ptyProcess{
		cmd:        cmd,
		ptmx:       ptmx,
		raw:        raw,
		spec:       spec,
		outputDone: make(chan struct{}),
	}

	if r.Stdin != nil && term.IsTerminal(int(r.Stdin.Fd())) {
		fd := int(r.Stdin.Fd())
		_ = pty.InheritSize(r.Stdin, ptmx)
		if st, err := term.MakeRaw(fd); err == nil {
			p.restore = func() { term.Restore(fd, st) }
		}
		p.winch = make(chan os.Signal, 1)
		signal.Notify(p.winch, syscall.SIGWINCH)
		go func() {
			for range p.winch {
				_ = pty.InheritSize(r.Stdin, ptmx)
			}
		}()
	}

	var stdout io.Writer = io.Discard
	if r.Stdout != nil {
		stdout = r.Stdout
	}
	go p.copyOutput(stdout)
	if r.Stdin != nil {
		var in io.Reader = r.Stdin
		// Canceled on close so later keystrokes stay with the shell.
		if cr, err := cancelreader.NewReader(r.Stdin); err == nil {
			p.input = cr
			in = cr
		}
		p.inputDone = make(chan struct{})
		go p.copyInput(in)
	}
	return p, nil
}

type ptyProcess struct {
	cmd     *exec.Cmd
	ptmx    *os.File
	raw     *os.File
	spec    Spec
	restore func()
	winch   chan os.Signal

	input     cancelreader.CancelReader
	inputDone chan struct{}

	outputDone chan struct{}
	rawMu      sync.Mutex
	closeOnce  sync.Once
}

func (p *ptyProcess) copyOutput(stdout io.Writer) {
	defer close(p.outputDone)
	buf := make([]byte, 32*1024)
	for {
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			stdout.Write(chunk)
			p.rawMu.Lock()
			p.raw.Write(chunk)
			p.rawMu.Unlock()
			if p.spec.Transcript != nil {
				p.spec.Transcript.RecordOutput(chunk)
			}
		}
		if err != nil {
			return
		}
	}
}

// copyInput forwards the user's keystrokes. It ends on the first read or
// write error, which includes the pty closing and the reader being canceled.
func (p *ptyProcess) copyInput(stdin io.Reader) {
	defer close(p.inputDone)
	buf := make([]byte, 4096)
	for {
		n, err := stdin.Read(buf)
		if n > 0 {
			if _, werr := p.ptmx.Write(buf[:n]); werr != nil {
				return
			}
			if p.spec.Transcript != nil {
				p.spec.Transcript.RecordInput(buf[:n])
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *ptyProcess) Write(b []byte) (int, error) {
	return p.ptmx.Write(b)
}

func (p *ptyProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *ptyProcess) Wait() (int, error) {
	waitErr := p.cmd.Wait()
	select {
	case <-p.outputDone:
	case <-time.After(drainTimeout):
	}
	p.close()
	return exitCode(waitErr)
}

func (p *ptyProcess) close() {
	p.closeOnce.Do(func() {
		if p.input != nil {
			p.input.Cancel()
			select {
			case <-p.inputDone:
			case <-time.After(inputStopTimeout):
			}
			p.input.Close()
		}
		if p.winch != nil {
			signal.Stop(p.winch)
			close(p.winch)
		}
		if p.restore != nil {
			p.restore()
		}
		p.ptmx.Close()
		p.rawMu.Lock()
		p.raw.Close()
		p.rawMu.Unlock()
		if p.spec.Transcript != nil {
			p.spec.Transcript.Flush()
		}
	})
}
