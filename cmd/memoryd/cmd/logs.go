package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/divyekant/memoryd/internal/diagnostics"
	"github.com/divyekant/memoryd/internal/logging"
	"github.com/divyekant/memoryd/internal/output"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail or search memoryd's log file",
	}

	cmd.AddCommand(newLogsTailCmd())
	cmd.AddCommand(newLogsSearchCmd())
	return cmd
}

func newLogsTailCmd() *cobra.Command {
	var (
		n       int
		level   string
		logFile string
		follow  bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the last N log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogsTail(cmd, n, level, logFile, noColor)
		},
	}

	cmd.Flags().IntVarP(&n, "lines", "n", 50, "number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "filter by level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFile, "file", "", "explicit log file path")
	cmd.Flags().BoolVar(&follow, "follow", false, "unused placeholder, reserved for a future -f mode")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored level labels")
	_ = cmd.Flags().MarkHidden("follow")

	return cmd
}

func runLogsTail(cmd *cobra.Command, n int, level, logFile string, noColor bool) error {
	path, err := logging.FindLogFile(logFile)
	if err != nil {
		return err
	}

	viewer := logging.NewViewer(logging.ViewerConfig{Level: level, NoColor: noColor}, cmd.OutOrStdout())
	entries, err := viewer.Tail(path, n)
	if err != nil {
		return err
	}

	viewer.Print(entries)
	return nil
}

func newLogsSearchCmd() *cobra.Command {
	var (
		level   string
		source  string
		limit   int
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over memoryd's log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogsSearch(cmd, args[0], level, source, limit, logFile)
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "filter by level")
	cmd.Flags().StringVar(&source, "source", "", "filter by source label")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	cmd.Flags().StringVar(&logFile, "file", "", "explicit log file path")

	return cmd
}

func runLogsSearch(cmd *cobra.Command, query, level, source string, limit int, logFile string) error {
	ctx := cmd.Context()

	path, err := logging.FindLogFile(logFile)
	if err != nil {
		return err
	}

	ix, err := diagnostics.Open("")
	if err != nil {
		return err
	}
	defer ix.Close()

	if _, err := ix.IndexLogFiles([]string{path}); err != nil {
		return err
	}

	results, err := ix.Search(ctx, query, level, source, limit)
	if err != nil {
		return err
	}

	out := output.NewAuto(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Status("", "no matches")
		return nil
	}
	for _, r := range results {
		out.Status("", fmt.Sprintf("[%s] %s %s: %s (score %.2f)", r.Time, r.Level, r.Source, r.Msg, r.Score))
	}
	return nil
}
