package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/memex/internal/contextpack"
	"github.com/fakeyudi/memex/internal/supervisor"
)

var (
	contextTier   int
	contextBudget int
	contextTokens int
	contextFocus  string
	contextWatch  bool
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the resume context block for this project",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject()
		if err != nil {
			return err
		}
		opts := contextOptions()
		render := func(w io.Writer) error {
			m, err := p.loadMemory()
			if err != nil {
				return err
			}
			fmt.Fprintln(w, contextpack.Build(m, opts))
			return nil
		}
		if !contextWatch {
			return render(cmd.OutOrStdout())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), supervisor.ShutdownSignals...)
		defer stop()
		return watchMemory(ctx, p.Store.Path(p.ID), func() {
			fmt.Fprint(cmd.OutOrStdout(), "\033[H\033[2J")
			if err := render(cmd.OutOrStdout()); err != nil {
				cmd.PrintErrln(err)
			}
		})
	},
}

// contextOptions merges command flags over the configured tier and limit.
func contextOptions() contextpack.Options {
	opts := contextpack.Options{
		Tier:   contextpack.Tier(cfg.ContextTier),
		Budget: contextpack.BudgetFromTokens(cfg.ContextTokenLimit),
		Focus:  contextFocus,
	}
	if contextTier > 0 {
		opts.Tier = contextpack.Tier(contextTier)
	}
	if contextTokens > 0 {
		opts.Budget = contextpack.BudgetFromTokens(contextTokens)
	}
	if contextBudget > 0 {
		opts.Budget = contextBudget
	}
	return opts
}

// watchMemory calls render once and again every time the memory file at
// path is rewritten, until ctx is cancelled. The file is replaced by rename,
// so the parent directory is watched rather than the file itself.
func watchMemory(ctx context.Context, path string, render func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	render()
	// Coalesce the burst of events a single atomic save produces.
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce = time.After(100 * time.Millisecond)
			}

		case <-debounce:
			debounce = nil
			render()

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
		}
	}
}

func init() {
	contextCmd.Flags().IntVar(&contextTier, "tier", 0, "verbosity tier: 1 brief, 2 standard, 3 full (default from config)")
	contextCmd.Flags().IntVar(&contextBudget, "budget", 0, "character budget (overrides --tokens)")
	contextCmd.Flags().IntVar(&contextTokens, "tokens", 0, "size limit in provider tokens, about 4 characters each")
	contextCmd.Flags().StringVar(&contextFocus, "focus", "", "rank items by overlap with these keywords")
	contextCmd.Flags().BoolVar(&contextWatch, "watch", false, "re-render whenever memory changes")
	rootCmd.AddCommand(contextCmd)
}
