package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/memex/internal/compress"
	"github.com/fakeyudi/memex/internal/config"
	"github.com/fakeyudi/memex/internal/gitctx"
	"github.com/fakeyudi/memex/internal/llm"
	"github.com/fakeyudi/memex/internal/logging"
	"github.com/fakeyudi/memex/internal/memory"
	"github.com/fakeyudi/memex/internal/session"
	"github.com/fakeyudi/memex/internal/webhook"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "memex",
	Short: "Run a coding agent and keep project memory between sessions",
	Long: `memex wraps a terminal coding agent, records the session and compresses
it into per-project memory. Running memex with no subcommand starts the
configured agent in the current directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, err := os.Getwd()
		if err != nil {
			return err
		}
		c, err := config.Load(dir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = c
		logging.Setup(cfg.LogLevel)
		return nil
	},
}

// exitCodeError carries the wrapped agent's exit status out of Execute.
type exitCodeError int

func (e exitCodeError) Error() string { return fmt.Sprintf("agent exited with status %d", int(e)) }

// Execute runs the root command. The process exits with the agent's status
// after a run, or 1 on any other error.
func Execute() {
	err := rootCmd.Execute()
	logging.Close()
	if err == nil {
		return
	}
	var code exitCodeError
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// project bundles the per-directory state every subcommand works against.
type project struct {
	Path    string
	ID      string
	Store   *memory.FileStore
	Tracker *session.Tracker
}

func openProject() (*project, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	path, err := filepath.Abs(wd)
	if err != nil {
		return nil, err
	}
	root, err := config.ProjectsDir()
	if err != nil {
		return nil, err
	}
	store, err := memory.NewFileStore(root)
	if err != nil {
		return nil, err
	}
	id := memory.ProjectID(path)
	tracker, err := session.NewTracker(filepath.Join(root, id))
	if err != nil {
		return nil, err
	}
	return &project{Path: path, ID: id, Store: store, Tracker: tracker}, nil
}

// loadMemory returns the project's memory, or an error naming the project
// when nothing has been recorded yet.
func (p *project) loadMemory() (*memory.ProjectMemory, error) {
	m, err := p.Store.Load(p.ID)
	if errors.Is(err, memory.ErrNotFound) {
		return nil, fmt.Errorf("no memory recorded for %s yet", p.Path)
	}
	return m, err
}

// orchestrator wires compression to the configured collaborators. A missing
// credential surfaces as a transport failure so the raw log is kept.
func (p *project) orchestrator() *compress.Orchestrator {
	log := logging.Component("compress")
	sum, err := llm.New(cfg.Provider, llm.Options{
		APIKey:  cfg.APIKey(),
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout(),
	})
	if err != nil {
		log.WithError(err).Warn("summarizer unavailable")
		sum = unavailable{err: err}
	}
	return &compress.Orchestrator{
		Store:       p.Store,
		Summarizer:  sum,
		Git:         &gitctx.Collector{},
		Sessions:    p.Tracker,
		Webhook:     webhook.New(logging.Component("webhook")),
		WebhookURL:  cfg.WebhookURL,
		ArchiveLogs: cfg.ArchiveEnabled(),
		Log:         log,
		MinLength:   cfg.MinTranscriptChars,
		TailChars:   cfg.TranscriptTailChars,
	}
}

func (p *project) logger(component string) *logrus.Entry {
	return logging.Component(component).WithField("project", p.ID)
}
