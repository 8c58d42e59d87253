package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/divyekant/memoryd/internal/output"
)

func newRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild <directory>",
		Short: "Replace the entire corpus with a fresh chunking pass over markdown files",
		Long: `Clears every existing memory and re-chunks every *.md file under
<directory> into the corpus. This resets ids from 0 rather than
continuing the existing id sequence.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(cmd, args[0])
		},
	}
	return cmd
}

func runRebuild(cmd *cobra.Command, dir string) error {
	out := output.NewAuto(cmd.OutOrStdout())
	ctx := cmd.Context()

	files, err := collectMarkdown(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .md files found under %s", dir)
	}

	st, err := openStack(ctx, slog.Default())
	if err != nil {
		return err
	}

	n, err := st.engine.RebuildFromFiles(ctx, files)
	if err != nil {
		return err
	}

	if err := st.Close(); err != nil {
		return err
	}

	out.Success(fmt.Sprintf("rebuilt corpus from %d files (%d chunks)", len(files), n))
	return nil
}

func collectMarkdown(dir string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files[path] = string(content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
