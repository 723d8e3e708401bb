package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/vietddude/labeler/internal/labeling/summary"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Write the per-year summary report for an existing output file",
	Run:   runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) {
	cfg := mustSetup(cmd)
	if cfg.Output.Path == "" {
		slog.Error("Output path is required")
		os.Exit(1)
	}

	path, groups, err := summary.Summarize(afero.NewOsFs(), cfg.Output.Path)
	if err != nil {
		slog.Error("Failed to summarize", "output", cfg.Output.Path, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d groups to %s\n", groups, path)
}
