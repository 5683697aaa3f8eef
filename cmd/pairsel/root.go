package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/ifg-pair-selector/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pairsel",
		Short: "Select interferogram acquisition pairs for areas of interest.",
		Long: `pairsel groups Sentinel-1 acquisitions by track and date, checks their land
coverage against each area of interest and emits candidate interferogram pairs.

Configuration is read from the environment, optionally seeded from .env files.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringSlice("env", nil, "dotenv files to load before reading the environment (default .env)")
	root.PersistentFlags().StringP("loglevel", "l", "", "override LOG_LEVEL: debug, info, warn, error")

	root.AddCommand(newRunCmd(), newAOICmd(), newServeCmd())
	return root
}

// loadConfig reads the configuration the way every subcommand needs it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	files, _ := cmd.Flags().GetStringSlice("env")
	if err := config.LoadDotEnv(files...); err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("loglevel"); level != "" {
		if err := os.Setenv("LOG_LEVEL", level); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// cliLogger writes to stderr so stdout carries only command output.
func cliLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return cfg.Logging.NewLogger(cmd.ErrOrStderr())
}
