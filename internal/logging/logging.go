// Package logging configures the process logger. The wrapped agent owns the
// terminal while it runs, so everything goes to a dated file under the XDG
// state directory.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	base      = logrus.New()
	baseMu    sync.Mutex
	loggers   = make(map[string]*logrus.Entry)
	logFile   *os.File
	configure sync.Once
)

// Setup points the process logger at the dated file sink with the given
// level. MEMEX_LOG_LEVEL overrides level. It is safe to call more than once;
// only the first call opens the file.
func Setup(level string) {
	configure.Do(func() {
		out, err := openSink(time.Now())
		if err != nil {
			base.SetOutput(os.Stderr)
			base.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		} else {
			base.SetOutput(out)
			base.SetFormatter(&logrus.JSONFormatter{})
		}
	})
	SetLevel(level)
}

// SetLevel changes the level of every component logger.
func SetLevel(level string) {
	if env := os.Getenv("MEMEX_LOG_LEVEL"); env != "" {
		level = env
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
}

// SetOutput redirects logging, mainly for tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// Component returns the logger for a named component. Entries carry a
// "component" field.
func Component(name string) *logrus.Entry {
	baseMu.Lock()
	defer baseMu.Unlock()
	if l, ok := loggers[name]; ok {
		return l
	}
	l := base.WithField("component", name)
	loggers[name] = l
	return l
}

// Dir returns where log files are written.
func Dir() string {
	state := os.Getenv("XDG_STATE_HOME")
	if state == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "memex", "logs")
		}
		state = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(state, "memex", "logs")
}

// Close flushes and closes the file sink.
func Close() error {
	baseMu.Lock()
	defer baseMu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	base.SetOutput(io.Discard)
	return err
}

func openSink(now time.Time) (*os.File, error) {
	dir := Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("memex-%s.log", now.Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	baseMu.Lock()
	logFile = f
	baseMu.Unlock()
	return f, nil
}
