package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/labeler/internal/control"
	"github.com/vietddude/labeler/internal/core/config"
)

var (
	cfgPath    string
	isDebug    bool
	inputPath  string
	outputPath string
	workers    int
	rps        float64
)

var rootCmd = &cobra.Command{
	Use:   "labeler",
	Short: "Rate-limited text classification pipeline",
	Long: `Labeler sends every record of a CSV or XLSX file to a chat-completion service,
parses the reply into a score and a reason and writes the results in input order.
Interrupted runs resume from the last checkpoint.`,
	Run: runLabeler,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&inputPath, "input", "i", "", "input file (overrides input.path)")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "output file (overrides output.path)")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "max records in flight (overrides limits.max_workers)")
	rootCmd.Flags().Float64Var(&rps, "rps", 0, "requests per second (overrides limits.requests_per_second)")
}

// loadConfig reads the config file and applies flag overrides. A missing
// config file is fine unless --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, err
		}
		cfg = config.Default()
	}

	if inputPath != "" {
		cfg.Input.Path = inputPath
	}
	if outputPath != "" {
		cfg.Output.Path = outputPath
	}
	if workers > 0 {
		cfg.Limits.MaxWorkers = workers
	}
	if rps > 0 {
		cfg.Limits.RequestsPerSecond = rps
	}
	return cfg, cfg.Validate()
}

func setupLogging(cfg *config.AppConfig) {
	slogLevel := slog.LevelInfo
	switch {
	case isDebug || cfg.Logging.Level == "debug":
		slogLevel = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		slogLevel = slog.LevelWarn
	case cfg.Logging.Level == "error":
		slogLevel = slog.LevelError
	}

	if cfg.Logging.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
		return
	}
	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

// mustSetup loads config and logging for a subcommand, exiting on failure.
func mustSetup(cmd *cobra.Command) *config.AppConfig {
	cfg, err := loadConfig(cmd)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)
	return cfg
}

func runLabeler(cmd *cobra.Command, args []string) {
	cfg := mustSetup(cmd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Received signal, finishing in-flight records...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	app, err := control.NewLabeler(ctx, cfg, control.Options{})
	if err != nil {
		slog.Error("Failed to initialize Labeler", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("Error during shutdown", "error", err)
		}
	}()

	slog.Info("Labeler started",
		"config", cfgPath,
		"input", cfg.Input.Path,
		"output", cfg.Output.Path,
		"workers", cfg.Limits.MaxWorkers,
		"rps", cfg.Limits.RequestsPerSecond,
	)

	res, err := app.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("Labeler stopped with error", "written", res.Written, "error", err)
		// Deferred Close does not run after os.Exit.
		_ = app.Close()
		os.Exit(1)
	}

	slog.Info("Labeler finished",
		"written", res.Written,
		"total", res.Total,
		"resumed", res.Resumed,
		"summary", res.SummaryPath,
		"duration", res.Duration.Round(time.Millisecond),
	)
}
