package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/labeler/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored checkpoint and whether the next run would resume",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := mustSetup(cmd)

	ctx := context.Background()
	app, err := control.NewLabeler(ctx, cfg, control.Options{})
	if err != nil {
		slog.Error("Failed to initialize Labeler", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Close()
	}()

	plan, total, err := app.Status(ctx)
	if err != nil {
		slog.Error("Failed to read status", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "INPUT\tOUTPUT\tRECORDS\tWRITTEN\tRESUME\tUPDATED\tREASON")

	updated := "-"
	if cp := plan.Checkpoint; cp != nil {
		updated = cp.UpdatedAt.Format(time.RFC3339)
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%s\t%s\n",
		cfg.Input.Path, cfg.Output.Path, total, plan.Start, plan.Resumed, updated, plan.Reason)
	_ = w.Flush()
}
