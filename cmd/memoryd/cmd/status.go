package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/divyekant/memoryd/internal/config"
	"github.com/divyekant/memoryd/internal/daemon"
	"github.com/divyekant/memoryd/internal/output"
)

type statusResult struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Status  string `json:"status,omitempty"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
	Records int    `json:"records,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show memoryd's running status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	out := output.NewAuto(cmd.OutOrStdout())

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	pf := daemon.NewPIDFile(pidPath(cfg))
	if !pf.IsRunning() {
		result := statusResult{Running: false}
		if jsonOutput {
			return printJSON(cmd, result)
		}
		out.Status("", "memoryd is not running")
		return nil
	}

	pid, _ := pf.Read()
	result := statusResult{Running: true, PID: pid, Status: "ok"}

	if health, err := fetchHealth(cfg.Server.ListenAddr); err == nil {
		result.Version = health.Version
		result.Uptime = health.Uptime
		result.Records = health.Records
	}

	if jsonOutput {
		return printJSON(cmd, result)
	}

	out.Success(fmt.Sprintf("memoryd is running (pid: %d)", pid))
	if result.Version != "" {
		out.Status("", fmt.Sprintf("  version: %s", result.Version))
		out.Status("", fmt.Sprintf("  uptime:  %s", result.Uptime))
		out.Status("", fmt.Sprintf("  records: %d", result.Records))
	}
	return nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime_seconds,omitempty"`
	Records int    `json:"record_count,omitempty"`
}

func fetchHealth(listenAddr string) (*healthResponse, error) {
	addr := listenAddr
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}

	client := http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
