package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/divyekant/memoryd/internal/config"
	"github.com/divyekant/memoryd/internal/daemon"
	"github.com/divyekant/memoryd/internal/engine"
	"github.com/divyekant/memoryd/internal/extraction"
	"github.com/divyekant/memoryd/internal/governor"
	"github.com/divyekant/memoryd/internal/httpapi"
	"github.com/divyekant/memoryd/internal/llm"
	"github.com/divyekant/memoryd/internal/logging"
	"github.com/divyekant/memoryd/internal/output"
	"github.com/divyekant/memoryd/internal/usage"
)

func newServeCmd() *cobra.Command {
	var background bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the memoryd HTTP server",
		Long: `Start the HTTP server that owns the memory engine: the vector and
BM25 indexes, the extraction pipeline, and the background governor.

By default it runs in the foreground. Use --background to daemonize:
the process re-execs itself detached and returns once the health
endpoint is reachable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if background {
				return runServeBackground(cmd)
			}
			return runServeForeground(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&background, "background", "b", false, "daemonize and return once ready")
	return cmd
}

func runServeForeground(ctx context.Context) error {
	logger := slog.Default()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	pf := daemon.NewPIDFile(pidPath(cfg))
	if err := pf.Acquire(); err != nil {
		if errors.Is(err, daemon.ErrAlreadyLocked) {
			return fmt.Errorf("memoryd is already running against %s", cfg.DataDir)
		}
		return err
	}
	defer pf.Remove()

	st, err := openStack(ctx, logger)
	if err != nil {
		return err
	}

	usageStore, err := usage.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open usage store: %w", err)
	}
	defer usageStore.Close()

	provider, err := llm.New(ctx, llmSettings(cfg))
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	workerLogger := logging.Component(logger, "worker")

	extractionClient := engine.ExtractionClient{Engine: st.engine}
	pool := extraction.NewPool(
		cfg.Extraction.QueueCapacity,
		cfg.Extraction.WorkerCount,
		extractionClient,
		func() llm.Provider { return provider },
		nil,
		workerLogger,
	)

	gov := governor.New(
		governorConfig(cfg),
		pool,
		st.engine,
		func() int { return 0 },
		pool.QueueDepth,
		workerLogger,
	)
	pool.SetTrimFunc(gov.Trimmer().Func())
	pool.SetUsageFunc(func(promptTokens, completionTokens int) {
		if err := usageStore.RecordExtraction(context.Background(), promptTokens, completionTokens); err != nil {
			logger.Warn("usage: record extraction failed", slog.String("error", err.Error()))
		}
	})

	st.engine.SetQueueDepthFunc(pool.QueueDepth)
	st.engine.SetGovernorStatsFunc(func() (engine.TrimCounters, engine.ReloadCounters) {
		trim, reload := gov.Metrics()
		return engine.TrimCounters{Triggered: trim.Triggered, Skipped: trim.Skipped},
			engine.ReloadCounters{Triggered: reload.Triggered, Succeeded: reload.Succeeded, Failed: reload.Failed}
	})

	server := httpapi.New(httpapi.Deps{
		Engine:  st.engine,
		Pool:    pool,
		Usage:   usageStore,
		SnapMgr: st.snap,
		Local:   st.local,
		Cloud:   st.cloud,
		Config:  cfg.Server,
		Logger:  logging.Component(logger, "server"),
	})

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gov.Start(runCtx)
	defer gov.Stop()

	logger.Info("memoryd serving", slog.String("addr", cfg.Server.ListenAddr), slog.String("data_dir", cfg.DataDir))

	serveErr := server.Start(runCtx)

	if err := st.Close(); err != nil {
		logger.Warn("vector index save on shutdown failed", slog.String("error", err.Error()))
	}

	return serveErr
}

func runServeBackground(cmd *cobra.Command) error {
	out := output.NewAuto(cmd.OutOrStdout())

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	pf := daemon.NewPIDFile(pidPath(cfg))
	if pf.IsRunning() {
		out.Status("", "memoryd is already running")
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}

	bgArgs := []string{"serve"}
	if configPath != "" {
		bgArgs = append(bgArgs, "--config", configPath)
	}
	if debugMode {
		bgArgs = append(bgArgs, "--debug")
	}

	bgCmd := exec.Command(execPath, bgArgs...)
	bgCmd.Stdout = nil
	bgCmd.Stderr = nil
	bgCmd.Stdin = nil
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("start background process: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	for i := 0; i < 50; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("memoryd exited unexpectedly: %w", err)
			}
			return fmt.Errorf("memoryd exited unexpectedly with code 0")
		default:
		}
		time.Sleep(100 * time.Millisecond)
		if pf.IsRunning() {
			out.Success(fmt.Sprintf("memoryd started (pid: %d)", bgCmd.Process.Pid))
			return nil
		}
	}

	return fmt.Errorf("memoryd failed to start within timeout")
}

func governorConfig(cfg *config.Config) governor.Config {
	return governor.Config{
		JobReapInterval:     cfg.Governor.JobReapInterval,
		JobRetention:        cfg.Governor.JobRetention,
		MaxJobs:             cfg.Governor.MaxJobs,
		TrimInterval:        cfg.Governor.TrimInterval,
		TrimCooldown:        cfg.Governor.TrimCooldown,
		CheckInterval:       cfg.Governor.CheckInterval,
		RSSThresholdBytes:   cfg.Governor.RSSThresholdMB * 1024 * 1024,
		RequiredHighStreak:  cfg.Governor.RequiredHighStreak,
		MinReloadInterval:   cfg.Governor.MinReloadInterval,
		ReloadWindow:        cfg.Governor.ReloadWindow,
		MaxReloadsPerWindow: cfg.Governor.MaxReloadsPerWindow,
		MaxActiveRequests:   cfg.Governor.MaxActiveRequests,
		MaxQueueDepth:       cfg.Governor.MaxQueueDepth,
	}
}
