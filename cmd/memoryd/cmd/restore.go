package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/divyekant/memoryd/internal/output"
)

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <backup-name>",
		Short: "Restore a local snapshot by name, taking a pre_restore backup first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd, args[0])
		},
	}
	return cmd
}

func runRestore(cmd *cobra.Command, name string) error {
	out := output.NewAuto(cmd.OutOrStdout())
	ctx := cmd.Context()

	st, err := openStack(ctx, slog.Default())
	if err != nil {
		return err
	}

	// Restore reloads metadata from the backup and reindexes the vector
	// store from it (snapshots don't cover the HNSW index itself).
	if err := st.snap.Restore(ctx, name, st.engine); err != nil {
		return fmt.Errorf("restore %s: %w", name, err)
	}

	if err := st.Close(); err != nil {
		return err
	}

	out.Success("restored from backup: " + name)
	return nil
}
