package supervisor_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/memex/internal/supervisor"
	"github.com/fakeyudi/memex/internal/transcript"
)

func TestRecorderCapturesOutput(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "s.raw.log")
	var stdout bytes.Buffer
	tl := transcript.NewLogger(nil)

	r := &supervisor.Recorder{Shell: "/bin/sh", Stdout: &stdout}
	proc, err := r.Start(context.Background(), supervisor.Spec{
		Path:       "/bin/sh",
		Args:       []string{"-c", `printf 'hello from agent\n'; echo "key=${OPENAI_API_KEY:-unset}"`},
		Dir:        dir,
		Env:        []string{"PATH=/usr/bin:/bin", "OPENAI_API_KEY=secret", "HOME=" + dir},
		RawLogPath: raw,
		Transcript: tl,
	})
	if err != nil {
		t.Skipf("pty not available here: %v", err)
	}
	code, err := proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	data, err := os.ReadFile(raw)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from agent")
	assert.Contains(t, stdout.String(), "hello from agent")
	assert.Contains(t, string(data), "key=unset")
	assert.NotContains(t, string(data), "secret")

	flat := tl.Flat()
	assert.True(t, strings.Contains(flat, "[AGENT]: "), "flat transcript: %q", flat)
}

func TestRecorderStopsReadingInputAfterExit(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { pr.Close(); pw.Close() })

	dir := t.TempDir()
	r := &supervisor.Recorder{Shell: "/bin/sh", Stdin: pr}
	proc, err := r.Start(context.Background(), supervisor.Spec{
		Path:       "/bin/sh",
		Args:       []string{"-c", "exit 0"},
		Dir:        dir,
		Env:        []string{"PATH=/usr/bin:/bin", "HOME=" + dir},
		RawLogPath: filepath.Join(dir, "s.raw.log"),
		Transcript: transcript.NewLogger(nil),
	})
	if err != nil {
		t.Skipf("pty not available here: %v", err)
	}
	_, err = proc.Wait()
	require.NoError(t, err)

	// Input typed after the agent exited must still be there for us.
	got := make(chan string, 1)
	go func() {
		b := make([]byte, 8)
		n, _ := pr.Read(b)
		got <- string(b[:n])
	}()
	_, err = pw.Write([]byte("y"))
	require.NoError(t, err)
	select {
	case s := <-got:
		assert.Equal(t, "y", s)
	case <-time.After(2 * time.Second):
		t.Fatal("keystroke after exit was swallowed")
	}
}
