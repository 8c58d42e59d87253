package cmd

import (
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/divyekant/memoryd/internal/config"
	"github.com/divyekant/memoryd/internal/daemon"
	"github.com/divyekant/memoryd/internal/output"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a background-mode memoryd",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd)
		},
	}
}

func runStop(cmd *cobra.Command) error {
	out := output.NewAuto(cmd.OutOrStdout())

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	pf := daemon.NewPIDFile(pidPath(cfg))
	if !pf.IsRunning() {
		out.Status("", "memoryd is not running")
		return nil
	}

	pid, err := pf.Read()
	if err != nil {
		return fmt.Errorf("read pid file: %w", err)
	}

	if err := pf.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal memoryd: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pf.IsRunning() {
			out.Success(fmt.Sprintf("memoryd stopped (was pid: %d)", pid))
			return nil
		}
	}

	out.Status("", "memoryd not responding, sending SIGKILL...")
	if err := pf.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("kill memoryd: %w", err)
	}
	_ = pf.Remove()
	out.Success("memoryd killed")
	return nil
}
