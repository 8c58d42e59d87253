package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	// When: executing with --help
	err := cmd.Execute()

	// Then: it should show usage information
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "memoryd", "Help should mention program name")
	assert.Contains(t, output, "Usage:", "Help should show usage")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	// When: executing with --version
	err := cmd.Execute()

	// Then: it should print the version line
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "memoryd version")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	// When: checking available commands
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	// Then: every documented subcommand should be registered
	for _, want := range []string{"serve", "stop", "status", "backup", "restore", "rebuild", "stats", "logs", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_HasConfigAndDebugFlags(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	// Then: it should expose --config and --debug as persistent flags
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	debugFlag := cmd.PersistentFlags().Lookup("debug")
	require.NotNil(t, debugFlag)
	assert.Equal(t, "false", debugFlag.DefValue)
}

func TestLogsCmd_ShowsHelp(t *testing.T) {
	// Given: a root command

	// When: executing logs --help
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"logs", "--help"})

	err := cmd.Execute()

	// Then: it should list the tail and search subcommands
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "tail")
	assert.Contains(t, output, "search")
}
