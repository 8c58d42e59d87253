package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/divyekant/memoryd/internal/output"
	"github.com/divyekant/memoryd/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(version.GetInfo())
			}
			out := output.NewAuto(cmd.OutOrStdout())
			out.Status("", version.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
