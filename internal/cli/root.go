package cli

import (
	"context"
	"errors"
	"fmt"
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

	"github.com/vietddude/vitality/internal/control"
	"github.com/vietddude/vitality/internal/core/config"
)

// Version is set at build time.
var Version = "dev"

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:     "vitality",
	Short:   "Lightning node channel health monitor",
	Long:    `Vitality watches the channels of a Core Lightning node, kicks slacking peers and alerts when they stay unhealthy.`,
	Version: Version,
	Run:     runVitality,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// setup loads .env and the config file and initializes logging. A missing
// default config file falls back to built-in defaults.
func setup(cmd *cobra.Command) (*config.AppConfig, string) {
	_ = godotenv.Load()

	path := cfgPath
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg, path
}

// newApp builds a Vitality instance for one-shot commands.
func newApp(ctx context.Context, cfg *config.AppConfig) *control.Vitality {
	app, err := control.New(ctx, control.Config{App: cfg, Version: Version})
	if err != nil {
		slog.Error("Failed to initialize vitality", "error", err)
		os.Exit(1)
	}
	return app
}

func runVitality(cmd *cobra.Command, args []string) {
	cfg, path := setup(cmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := control.New(ctx, control.Config{App: cfg, Path: path, Version: Version})
	if err != nil {
		slog.Error("Failed to initialize vitality", "error", err)
		os.Exit(1)
	}

	slog.Info("Vitality started", "config", path, "version", Version)
	runErr := app.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Close(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
	if runErr != nil {
		slog.Error("Vitality stopped", "error", runErr)
		os.Exit(1)
	}
	slog.Info("Vitality stopped")
}

// statusURL is the base URL of a running instance's status server.
func statusURL(cfg *config.AppConfig, addr string) string {
	if addr != "" {
		return addr
	}
	return fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
}
