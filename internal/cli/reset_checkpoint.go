package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/labeler/internal/control"
)

var resetCheckpointCmd = &cobra.Command{
	Use:   "reset-checkpoint",
	Short: "Delete the stored checkpoint so the next run starts from the first record",
	Run:   runResetCheckpoint,
}

func init() {
	rootCmd.AddCommand(resetCheckpointCmd)
}

func runResetCheckpoint(cmd *cobra.Command, args []string) {
	cfg := mustSetup(cmd)
	if cfg.Output.Path == "" {
		slog.Error("Output path is required to locate the checkpoint")
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := control.NewLabeler(ctx, cfg, control.Options{})
	if err != nil {
		slog.Error("Failed to initialize Labeler", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Close()
	}()

	if err := app.ResetCheckpoint(ctx); err != nil {
		slog.Error("Failed to reset checkpoint", "error", err)
		_ = app.Close()
		os.Exit(1)
	}

	fmt.Printf("Successfully reset checkpoint for %s\n", cfg.Output.Path)
}
