package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyekant/memoryd/pkg/version"
)

func TestVersionCmd_DefaultOutput(t *testing.T) {
	// Given: a version command
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	// When: executing without flags
	err := cmd.Execute()

	// Then: it should print the human-readable build string
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "memoryd")
	assert.Contains(t, output, version.Version)
}

func TestVersionCmd_JSONOutput(t *testing.T) {
	// Given: a version command with --json
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--json"})

	// When: executing with --json
	err := cmd.Execute()

	// Then: it should emit a JSON object with the expected fields
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Equal(t, version.Version, info["version"])
	assert.Contains(t, info, "commit")
	assert.Contains(t, info, "go_version")
	assert.Contains(t, info, "os")
	assert.Contains(t, info, "arch")
}

func TestVersionCmd_AddedToRoot(t *testing.T) {
	// Given: the root command

	// When: looking for the version subcommand
	versionCmd, _, err := NewRootCmd().Find([]string{"version"})

	// Then: it should be registered under that name
	require.NoError(t, err)
	assert.Equal(t, "version", versionCmd.Name())
}
