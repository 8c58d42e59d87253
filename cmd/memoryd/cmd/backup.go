package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/divyekant/memoryd/internal/output"
)

func newBackupCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a local snapshot, mirrored to cloud storage if configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(cmd, prefix)
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "manual", "label prefixed to the backup directory name")
	return cmd
}

func runBackup(cmd *cobra.Command, prefix string) error {
	out := output.NewAuto(cmd.OutOrStdout())
	ctx := cmd.Context()

	st, err := openStack(ctx, slog.Default())
	if err != nil {
		return err
	}

	name, err := st.snap.Snapshot(ctx, prefix)
	if err != nil {
		return err
	}

	out.Success("backup created: " + name)
	return nil
}
