package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyekant/memoryd/internal/config"
	"github.com/divyekant/memoryd/internal/daemon"
)

func TestServeCmd_HasBackgroundFlag(t *testing.T) {
	// Given: the root command
	cmd := NewRootCmd()

	// When: finding the serve subcommand
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	// Then: it should expose --background/-b
	flag := serveCmd.Flags().Lookup("background")
	require.NotNil(t, flag)
	assert.Equal(t, "b", flag.Shorthand)
	assert.Equal(t, "false", flag.DefValue)
}

func TestServeCmd_RejectsDoubleAcquireOfPIDLock(t *testing.T) {
	// Given: a PID file already locked by another "instance"
	t.Setenv("MEMORYD_DATA_DIR", t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)

	holder := daemon.NewPIDFile(pidPath(cfg))
	require.NoError(t, holder.Acquire())
	defer holder.Remove()

	// When: a second acquire against the same path is attempted
	second := daemon.NewPIDFile(pidPath(cfg))
	err = second.Acquire()

	// Then: it should fail rather than silently succeed
	assert.Error(t, err)
}
