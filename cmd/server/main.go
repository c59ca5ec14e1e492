package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mediabot/backend"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "mediabot",
		Short:         "Telegram bot that downloads media from links",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (default $CONFIG_PATH or config.toml)")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newFetchCmd(&configPath))
	return root
}

// loadConfig loads configuration and initialises the package logger.
func loadConfig(path string, requireBot bool) (backend.Config, error) {
	cfg, err := backend.LoadConfigWithEnv(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	backend.InitLogger(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(requireBot); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
