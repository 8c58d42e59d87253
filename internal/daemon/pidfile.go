// Package daemon manages memoryd's background-mode process: the PID
// file a "serve --background" writes so a later "stop"/"status" call
// can find and signal it.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
)

// ErrPIDFileNotFound is returned when the PID file doesn't exist.
var ErrPIDFileNotFound = errors.New("PID file not found")

// ErrAlreadyLocked is returned by Acquire when another process already
// holds the PID file's lock.
var ErrAlreadyLocked = errors.New("daemon already running")

// PIDFile manages a daemon process ID file, guarded by an flock so two
// "serve" invocations racing on the same data directory can't both
// believe they're the sole instance.
type PIDFile struct {
	path string
	lock *flock.Flock
}

// NewPIDFile creates a new PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire takes the cross-process lock and writes the current PID to
// the file, failing with ErrAlreadyLocked if another process holds it.
// The lock is held for the life of the process; call Remove on shutdown.
func (p *PIDFile) Acquire() error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}

	locked, err := p.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire PID lock: %w", err)
	}
	if !locked {
		return ErrAlreadyLocked
	}

	return p.write()
}

func (p *PIDFile) write() error {
	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid))
	if err := os.WriteFile(p.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrPIDFileNotFound
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}

	return pid, nil
}

// Remove releases the lock and deletes the PID file. Returns nil if the
// file doesn't exist.
func (p *PIDFile) Remove() error {
	_ = p.lock.Unlock()
	err := os.Remove(p.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// IsRunning checks if a process with the stored PID is running.
// Returns false if the PID file doesn't exist or the process isn't running.
func (p *PIDFile) IsRunning() bool {
	pid, err := p.Read()
	if err != nil {
		return false
	}

	return processExists(pid)
}

// Signal sends a signal to the process with the stored PID.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}

	return nil
}

// processExists checks if a process with the given PID exists.
func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so we need to send signal 0
	// to check if the process actually exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
