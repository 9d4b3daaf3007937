package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/linechat-server/internal/app"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/log"
)

var (
	configPath string
	overrides  config.Config
	noSeed     bool
)

// rootCmd runs the chat server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:           "linechat-server",
	Short:         "Line-based TCP chat server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat server",
	RunE:  runServe,
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "linechat-server: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (created with defaults when missing)")

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		flags := cmd.Flags()
		flags.StringVar(&overrides.Addr, "addr", "", "TCP chat listen address")
		flags.StringVar(&overrides.HTTPAddr, "http-addr", "", "HTTP API listen address")
		flags.StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")
		flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
		flags.StringVar(&overrides.LogFormat, "log-format", "", "log format (console, json)")
		flags.DurationVar(&overrides.AuthTimeout, "auth-timeout", 0, "time allowed to authenticate")
		flags.DurationVar(&overrides.ActivityTimeout, "activity-timeout", 0, "idle time before a session is closed")
		flags.IntVar(&overrides.MaxLinesPerMinute, "max-lines-per-minute", 0, "per-session flood limit (0 disables)")
		flags.BoolVar(&noSeed, "no-seed", false, "do not create demo accounts on an empty database")
	}

	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the config file and environment, then applies command-line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	bootstrap := log.New("info", "console")

	cfg, path, err := config.Load(bootstrap, configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	bootstrap.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

// applyOverrides merges the flags given on the command line into cfg.
// An explicitly empty --http-addr turns the HTTP API off and an explicit
// --max-lines-per-minute 0 turns the flood limit off.
func applyOverrides(cfg *config.Config, cmd *cobra.Command) {
	cfg.UpdateFrom(overrides)

	flags := cmd.Flags()
	if flags.Changed("http-addr") {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if flags.Changed("max-lines-per-minute") {
		cfg.MaxLinesPerMinute = overrides.MaxLinesPerMinute
	}
	if noSeed {
		cfg.SeedDemoUsers = false
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := log.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Str("http_addr", cfg.HTTPAddr).
		Dur("auth_timeout", cfg.AuthTimeout).
		Dur("activity_timeout", cfg.ActivityTimeout).
		Msg("starting linechat server")

	if err := application.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
