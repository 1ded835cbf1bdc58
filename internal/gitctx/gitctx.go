// Package gitctx gathers a small amount of repository state to give the
// summarizer some orientation. Every failure yields no context.
package gitctx

import (
	"context"
	"os/exec"
	"strings"
)

// MaxCommits bounds RecentCommits.
const MaxCommits = 10

// Runner executes a git command in workDir and returns its stdout.
// Tests substitute a fake.
type Runner func(ctx context.Context, workDir string, args ...string) (string, error)

// Context is the git state passed to compression. It is opaque to the
// orchestrator beyond being rendered into the prompt.
type Context struct {
	Branch        string   `json:"branch"`
	RecentCommits []string `json:"recentCommits"`
	ChangedFiles  []string `json:"changedFiles"`
}

// Collector reads git state.
type Collector struct {
	Runner Runner // if nil, uses the real git subprocess
}

func defaultRunner(ctx context.Context, workDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workDir
	out, err := cmd.Output()
	return string(out), err
}

// GetContext returns the branch, recent commits and changed files for cwd,
// or nil if cwd is not a git repository or any command fails.
func (c *Collector) GetContext(ctx context.Context, cwd string) *Context {
	run := c.Runner
	if run == nil {
		run = defaultRunner
	}

	// Also serves as the "is this a git repo?" check.
	branch, err := run(ctx, cwd, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil
	}

	logOut, err := run(ctx, cwd, "log", "--oneline", "-n", "10")
	if err != nil {
		// A repo with no commits yet has a branch but no log.
		logOut = ""
	}

	status, err := run(ctx, cwd, "status", "--porcelain")
	if err != nil {
		return nil
	}

	return &Context{
		Branch:        strings.TrimSpace(branch),
		RecentCommits: nonEmptyLines(logOut, MaxCommits),
		ChangedFiles:  parseStatus(status),
	}
}

// parseStatus extracts paths from `git status --porcelain`. Renames keep the
// new path.
func parseStatus(output string) []string {
	files := []string{}
	for _, l := range strings.Split(output, "\n") {
		if len(l) < 4 {
			continue
		}
		path := strings.TrimSpace(l[3:])
		if _, after, ok := strings.Cut(path, " -> "); ok {
			path = after
		}
		if path != "" {
			files = append(files, path)
		}
	}
	return files
}

// nonEmptyLines splits output into lines, discarding empty ones, capped at max.
func nonEmptyLines(output string, max int) []string {
	lines := strings.Split(output, "\n")
	result := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		result = append(result, l)
		if len(result) == max {
			break
		}
	}
	return result
}
