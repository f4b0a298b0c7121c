package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/telefeed/telefeed/internal/config"
)

// initCmd interactively writes a starter config.yaml into the config
// directory.
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively create config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dataDir, err := resolveDataDir(cmd)
			if err != nil {
				return err
			}

			path := filepath.Join(dataDir, "config.yaml")
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, edit it directly or remove it first", path)
			}

			cfg, err := promptConfig()
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", path)
			fmt.Println("Run `telefeed config check` to validate, then `telefeed start`.")
			return nil
		},
	}
}

func promptConfig() (*config.Config, error) {
	var (
		token    string
		chatID   string
		manager  string
		delay    string
		redis    string
		useRedis bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bot token").
				Description("From @BotFather, looks like 123456:ABC-DEF...").
				Value(&token).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("token is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Target chat").
				Description("Numeric chat ID or @channelname").
				Value(&chatID).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("chat is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Manager user ID").
				Description("Numeric user ID allowed to run commands; empty uses the chat ID").
				Value(&manager).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					_, err := strconv.ParseInt(s, 10, 64)
					return err
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Poll delay (seconds)").
				Value(&delay).
				Placeholder("300").
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					n, err := strconv.Atoi(s)
					if err != nil {
						return err
					}
					if n < int(config.MinDelay.Seconds()) {
						return fmt.Errorf("minimum is %d seconds", int(config.MinDelay.Seconds()))
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Store state in Redis instead of SQLite?").
				Value(&useRedis),
			huh.NewInput().
				Title("Redis host:port").
				Placeholder("localhost:6379").
				Value(&redis),
		),
	)

	if err := form.Run(); err != nil {
		return nil, err
	}

	cfg := &config.Config{
		Token:  strings.TrimSpace(token),
		ChatID: strings.TrimSpace(chatID),
	}
	if manager != "" {
		cfg.Manager, _ = strconv.ParseInt(manager, 10, 64)
	}
	if delay != "" {
		cfg.DelaySeconds, _ = strconv.Atoi(delay)
	}
	if useRedis {
		cfg.Redis.Host = strings.TrimSpace(redis)
		if cfg.Redis.Host == "" {
			cfg.Redis.Host = "localhost:6379"
		}
	}
	return cfg, nil
}
