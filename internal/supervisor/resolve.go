package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// LookupFunc asks a login shell where name lives. It returns the shell's raw
// stdout.
type LookupFunc func(ctx context.Context, shell, name string) (string, error)

// Resolver turns an agent command name into an absolute executable path.
type Resolver struct {
	// Shell is the login shell used for lookup. Defaults to $SHELL, then /bin/sh.
	Shell string
	// Lookup runs the login-shell lookup. Defaults to `$SHELL -l -c 'command -v name'`.
	Lookup LookupFunc
	// Dirs are searched in order when the login shell finds nothing.
	Dirs []string
}

// DefaultDirs lists where agent CLIs usually get installed.
func DefaultDirs() []string {
	home, _ := os.UserHomeDir()
	dirs := []string{"/usr/local/bin", "/opt/homebrew/bin"}
	if home != "" {
		dirs = append(dirs,
			filepath.Join(home, ".local", "bin"),
			filepath.Join(home, ".npm-global", "bin"),
			filepath.Join(home, ".bun", "bin"),
			filepath.Join(home, ".volta", "bin"),
			filepath.Join(home, ".claude", "local"),
		)
	}
	return append(dirs, "/usr/bin", "/bin")
}

// NewResolver returns a Resolver using the login shell and DefaultDirs.
func NewResolver() *Resolver {
	return &Resolver{Shell: loginShell(), Lookup: shellLookup, Dirs: DefaultDirs()}
}

// Resolve returns the absolute path of name.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.New("no agent command configured")
	}
	if strings.ContainsRune(name, os.PathSeparator) {
		abs, err := filepath.Abs(name)
		if err == nil && isExecutable(abs) {
			return abs, nil
		}
		return "", &ExecutableNotFoundError{Name: name, Attempted: []string{abs}, Remediation: Remediation(name)}
	}

	lookup := r.Lookup
	if lookup == nil {
		lookup = shellLookup
	}
	shell := r.Shell
	if shell == "" {
		shell = loginShell()
	}
	if out, err := lookup(ctx, shell, name); err == nil {
		if p := lastAbsolutePath(out); p != "" && isExecutable(p) {
			return p, nil
		}
	}

	attempted := []string{shell + " -l"}
	for _, dir := range r.Dirs {
		p := filepath.Join(dir, name)
		attempted = append(attempted, p)
		if isExecutable(p) {
			return p, nil
		}
	}
	return "", &ExecutableNotFoundError{Name: name, Attempted: attempted, Remediation: Remediation(name)}
}

// Remediation returns the install command suggested for a missing agent.
func Remediation(name string) string {
	switch filepath.Base(name) {
	case "claude":
		return "npm install -g @anthropic-ai/claude-code"
	case "codex":
		return "npm install -g @openai/codex"
	case "gemini":
		return "npm install -g @google/gemini-cli"
	default:
		return "install " + filepath.Base(name) + " and make sure it is on your PATH"
	}
}

func shellLookup(ctx context.Context, shell, name string) (string, error) {
	out, err := exec.CommandContext(ctx, shell, "-l", "-c", "command -v "+shellQuote(name)).Output()
	return string(out), err
}

func loginShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/sh"
}

// lastAbsolutePath picks the last absolute path printed. Profiles can print
// banners before the lookup runs.
func lastAbsolutePath(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if filepath.IsAbs(l) {
			return l
		}
	}
	return ""
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

// shellQuote wraps s in single quotes for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
