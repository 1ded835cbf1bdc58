package supervisor

import (
	"context"
	"errors"
	"os/exec"
	"syscall"

	"github.com/fakeyudi/memex/internal/transcript"
)

// ErrNoInput is returned by Process.Write when the strategy cannot feed the
// agent's input stream.
var ErrNoInput = errors.New("process input is not writable")

// Spec describes one agent launch.
type Spec struct {
	Path string
	Args []string
	Dir  string
	// Env is the full child environment before credential stripping.
	Env        []string
	RawLogPath string
	// Transcript receives captured input and output. Strategies without
	// capture leave it untouched.
	Transcript *transcript.Logger
}

// Process is a started agent.
type Process interface {
	// Write sends p to the agent as if typed by the user.
	Write(p []byte) (int, error)
	// Kill asks the agent to terminate. Its normal exit still fires Wait.
	Kill() error
	// Wait blocks until the agent exits and capture has drained, then
	// returns the exit code.
	Wait() (int, error)
}

// Strategy starts an agent. A Start error means the strategy is unusable and
// the next one should be tried.
type Strategy interface {
	Name() string
	Start(ctx context.Context, spec Spec) (Process, error)
}

// exitCode maps a Wait error to a shell-style exit code. Death by signal
// becomes 128+signal.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		return -1, err
	}
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), nil
	}
	return ee.ExitCode(), nil
}
