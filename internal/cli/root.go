package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/fullres/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
	runID   string

	// cfg is loaded once in PersistentPreRunE.
	cfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "fullres",
	Short: "Full-resolution image resolver",
	Long: `fullres replaces thumbnails with their full-resolution originals, falling back
through a chain of image proxies when the direct source is blocked.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&runID, "run-id", "", "namespace for shared source verdicts (default: random)")
}

func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	// Load Configuration
	loaded, err := config.Load(cfgPath)
	switch {
	case err == nil:
		cfg = loaded
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	default:
		stylelog.InitDefault()
		return fmt.Errorf("failed to load config: %w", err)
	}

	initLogging(cfg.Logging)
	slog.Debug("Config loaded", "path", cfgPath, "strategies", cfg.Engine.Strategies)
	return nil
}

func initLogging(lc config.LoggingConfig) {
	// Setup logging
	slogLevel := slog.LevelInfo
	switch lc.Level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}
	if isDebug {
		slogLevel = slog.LevelDebug
	}

	if lc.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
		return
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}
