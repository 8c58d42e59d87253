package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuildCmd_RequiresExactlyOneArg(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"rebuild"})

	// When: invoking rebuild without a directory argument
	err := cmd.Execute()

	// Then: it should fail argument validation
	assert.Error(t, err)
}

func TestRebuildCmd_ChunksMarkdownFiles(t *testing.T) {
	// Given: a directory with two markdown files and an isolated data dir
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "one.md"), []byte("# One\n\nfirst memory"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "two.md"), []byte("# Two\n\nsecond memory"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "ignored.txt"), []byte("not markdown"), 0644))

	t.Setenv("MEMORYD_DATA_DIR", t.TempDir())

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"rebuild", srcDir})

	// When: rebuilding from that directory
	err := cmd.Execute()

	// Then: it should succeed and report the file count
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "rebuilt corpus from 2 files")
}

func TestRebuildCmd_NoMarkdownFiles(t *testing.T) {
	// Given: a directory with no markdown files
	srcDir := t.TempDir()
	t.Setenv("MEMORYD_DATA_DIR", t.TempDir())

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"rebuild", srcDir})

	// When: rebuilding from that directory
	err := cmd.Execute()

	// Then: it should fail with a clear error
	assert.Error(t, err)
}
