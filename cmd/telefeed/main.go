// Package main is the entry point for the telefeed daemon.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/telefeed/telefeed/internal/config"
	"github.com/telefeed/telefeed/internal/core"

	// Compiled modules.
	_ "github.com/telefeed/telefeed/internal/gateway"
	_ "github.com/telefeed/telefeed/internal/monitor"
	_ "github.com/telefeed/telefeed/internal/storage/redis"
	_ "github.com/telefeed/telefeed/internal/storage/sqlite"
	_ "github.com/telefeed/telefeed/internal/telegram"
	_ "github.com/telefeed/telefeed/internal/telegraph"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "telefeed",
		Short:         "Forward RSS and Atom feeds to a Telegram chat",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config-dir", "d", "", "Directory holding config.yaml and persistent state")
	root.AddCommand(versionCmd(), startCmd(), configCmd(), initCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("telefeed %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Println("\nNo compiled modules.")
				return
			}
			fmt.Println("\nCompiled modules:")
			for _, mod := range mods {
				fmt.Printf("  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the feed monitor with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}

			debug, _ := cmd.Flags().GetBool("debug")
			app, err := buildApp(dataDir, debug)
			if err != nil {
				return err
			}
			return app.Run()
		},
	}
	cmd.Flags().Bool("debug", false, "Verbose logging (also enabled by DEBUG=1)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate configuration and module wiring",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}

			cfg, err := config.Load(dataDir)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			ids := config.EnabledModules(cfg)
			fmt.Printf("Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}

// buildApp loads the configuration, validates it, and wires the enabled
// modules.
func buildApp(dataDir string, debug bool) (*core.App, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Debug = true
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	appCtx := core.NewAppContext(logger, cfg, dataDir, version)
	app := core.NewApp(appCtx)
	if err := app.LoadModules(config.EnabledModules(cfg)); err != nil {
		return nil, err
	}
	return app, nil
}

// resolveDataDir picks the config directory: the --config-dir flag, then
// $TELEFEED_CONFIG_DIR, then ./config next to the working directory. The
// directory is created if missing.
func resolveDataDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("config-dir")
	if dir == "" {
		dir = os.Getenv("TELEFEED_CONFIG_DIR")
	}
	if dir == "" {
		dir = "config"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return abs, nil
}
