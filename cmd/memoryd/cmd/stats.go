package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/divyekant/memoryd/internal/output"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print corpus and embedder statistics",
		Long: `Reads the corpus directly from disk, without going through a
running server. Extraction queue depth and background-governor
counters are reported as zero in this mode since no pool or governor
is running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()

	st, err := openStack(ctx, slog.Default())
	if err != nil {
		return err
	}

	stats := st.engine.Stats()

	if jsonOutput {
		return printJSON(cmd, stats)
	}

	out := output.NewAuto(cmd.OutOrStdout())
	out.Status("", fmt.Sprintf("memories:    %d", stats.TotalMemories))
	out.Status("", fmt.Sprintf("embedder:    %s (%s, dim %d)", stats.EmbedderModel, stats.EmbedderProvider, stats.Dimension))
	out.Status("", fmt.Sprintf("storage:     %s", stats.StorageBackend))
	out.Status("", fmt.Sprintf("vector orphans: %d", stats.VectorOrphans))
	return nil
}
