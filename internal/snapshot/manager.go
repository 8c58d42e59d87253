package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// StateReloader is implemented by internal/engine so the snapshot manager
// can trigger a reload after a restore without importing the engine
// package directly.
type StateReloader interface {
	ReloadFromDisk(ctx context.Context) error
}

// Manager ties together local snapshots and the optional cloud mirror,
// implementing the auto-restore-on-init and restore-with-pre_restore-backup
// flows described for the engine's snapshot lifecycle.
type Manager struct {
	local  *Local
	cloud  *Cloud
	logger *slog.Logger
}

// NewManager builds a Manager. cloud may be nil to disable mirroring.
func NewManager(local *Local, cloud *Cloud, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{local: local, cloud: cloud, logger: logger}
}

// Snapshot creates a local snapshot and, if a cloud client is configured,
// mirrors it. Cloud upload failures are logged and never fail the call.
func (m *Manager) Snapshot(ctx context.Context, prefix string) (string, error) {
	name, err := m.local.Create(prefix)
	if err != nil {
		return "", err
	}

	if m.cloud != nil {
		dir := filepath.Join(m.local.BackupsDir, name)
		if err := m.cloud.UploadBackup(ctx, dir); err != nil {
			m.logger.Warn("cloud snapshot mirror failed", slog.String("backup", name), slog.String("error", err.Error()))
		}
	}

	return name, nil
}

// Restore takes a pre_restore snapshot, copies the named backup's files
// into place, then asks reloader to reload in-memory state from disk.
func (m *Manager) Restore(ctx context.Context, name string, reloader StateReloader) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	if _, err := m.Snapshot(ctx, "pre_restore"); err != nil {
		m.logger.Warn("pre-restore snapshot failed", slog.String("error", err.Error()))
	}

	if err := m.local.Restore(name); err != nil {
		return err
	}

	if reloader != nil {
		if err := reloader.ReloadFromDisk(ctx); err != nil {
			return fmt.Errorf("snapshot: reload after restore: %w", err)
		}
	}
	return nil
}

// AutoRestore runs at engine init: if metadata.json is absent locally and a
// cloud client is configured, download the latest remote snapshot and
// restore from it.
func (m *Manager) AutoRestore(ctx context.Context, reloader StateReloader) error {
	if m.cloud == nil {
		return nil
	}

	metadataPath := filepath.Join(m.local.DataDir, "metadata.json")
	if _, err := os.Stat(metadataPath); err == nil {
		return nil
	}

	name, ok, err := m.cloud.GetLatestSnapshot(ctx)
	if err != nil {
		m.logger.Warn("auto-restore: list remote snapshots failed", slog.String("error", err.Error()))
		return nil
	}
	if !ok {
		return nil
	}

	if err := m.cloud.DownloadBackup(ctx, name, m.local.BackupsDir); err != nil {
		return fmt.Errorf("snapshot: auto-restore download: %w", err)
	}

	m.logger.Info("auto-restoring from cloud snapshot", slog.String("backup", name))
	return m.Restore(ctx, name, reloader)
}

// List exposes the underlying local backup listing.
func (m *Manager) List() ([]string, error) {
	return m.local.List()
}
