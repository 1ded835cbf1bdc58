package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/memex/internal/contextpack"
	"github.com/fakeyudi/memex/internal/memory"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write this project's memory as json, yaml or markdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject()
		if err != nil {
			return err
		}
		m, err := p.loadMemory()
		if err != nil {
			return err
		}
		return exportMemory(cmd.OutOrStdout(), m, exportFormat)
	},
}

func exportMemory(w io.Writer, m *memory.ProjectMemory, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	case "markdown", "md":
		_, err := fmt.Fprintln(w, contextpack.Build(m, contextpack.Options{Tier: contextpack.TierFull, Budget: math.MaxInt}))
		return err
	default:
		return fmt.Errorf("unknown export format %q (expected json, yaml or markdown)", format)
	}
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "output format: json, yaml or markdown")
	rootCmd.AddCommand(exportCmd)
}
