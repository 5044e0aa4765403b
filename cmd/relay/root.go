package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/relay/internal/cli"
	"github.com/aretw0/relay/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay routes chat events to commands, buttons and conversations",
	Long: `Relay is an update dispatcher for chat bots: it routes commands, button
callbacks and free text to handlers and multi-step conversations, with
per-route access control and per-user session state.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")
}

// loadConfig reads the configuration named by the persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	logger, err := cli.NewLogger(cfg.Log)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// buildRuntime loads the configuration and wires a runtime around out.
func buildRuntime(ctx context.Context, cmd *cobra.Command, out cli.Outbound) (*cli.Runtime, config.Config, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, config.Config{}, err
	}
	rt, err := cli.Build(ctx, cfg, out, logger)
	if err != nil {
		return nil, config.Config{}, err
	}
	return rt, cfg, nil
}
