// Package cmd provides the CLI commands for memoryd.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/divyekant/memoryd/internal/logging"
	"github.com/divyekant/memoryd/pkg/version"
)

var (
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the memoryd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memoryd",
		Short: "Hybrid vector/BM25 memory service",
		Long: `memoryd stores short text memories, indexes them for both semantic
(vector) and keyword (BM25) search, and serves them over a small
local HTTP API.

Run 'memoryd serve' to start the server, or use the CLI subcommands
to manage backups, inspect stats, and search logs.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("memoryd version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a memoryd.yaml config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.memoryd/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newBackupCmd())
	cmd.AddCommand(newRestoreCmd())
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
