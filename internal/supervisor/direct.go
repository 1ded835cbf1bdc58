package supervisor

import (
	"context"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// Direct spawns the agent with inherited standard streams. Nothing is
// captured, so the session transcript stays empty.
type Direct struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewDirect returns a Direct strategy bound to the process's own streams.
func NewDirect() *Direct {
	return &Direct{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Start(ctx context.Context, spec Spec) (Process, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = SanitizeEnv(spec.Env)
	cmd.Stdin = d.Stdin
	cmd.Stdout = d.Stdout
	cmd.Stderr = d.Stderr
	if err := cmd.Start(); err != nil {
		return nil, &RecorderUnavailableError{Strategy: d.Name(), Cause: err}
	}
	return &directProcess{cmd: cmd}, nil
}

type directProcess struct {
	cmd *exec.Cmd
}

func (p *directProcess) Write([]byte) (int, error) { return 0, ErrNoInput }

func (p *directProcess) Kill() error {
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *directProcess) Wait() (int, error) {
	return exitCode(p.cmd.Wait())
}
