// Package daemonutil hosts the admin gRPC plane (internal/adminrpc)
// over a Unix socket for the Controller and Agent processes: PID-file
// single-instance enforcement, socket setup, and graceful shutdown.
package daemonutil

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile enforces that at most one process holds path at a time.
type PIDFile struct {
	path string
}

// NewPIDFile builds a PIDFile manager for path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Acquire writes the current PID to path, failing if another live
// process already holds it. A stale file (PID no longer running) is
// reclaimed silently.
func (p *PIDFile) Acquire() error {
	if _, err := os.Stat(p.path); err == nil {
		existing, err := ReadPID(p.path)
		if err != nil {
			return fmt.Errorf("daemonutil: failed to read existing PID file: %w", err)
		}
		if existing > 0 && IsProcessRunning(existing) {
			return fmt.Errorf("daemonutil: already running with PID %d", existing)
		}
		if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("daemonutil: failed to remove stale PID file: %w", err)
		}
	}

	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("daemonutil: failed to write PID file: %w", err)
	}
	return nil
}

// Release removes path. Safe to call multiple times.
func (p *PIDFile) Release() error {
	err := os.Remove(p.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsProcessRunning reports whether pid names a live process.
func IsProcessRunning(pid int) bool {
	return syscall.Kill(pid, syscall.Signal(0)) == nil
}

// ReadPID reads the PID recorded at path.
func ReadPID(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(content))
	if s == "" {
		return 0, fmt.Errorf("daemonutil: PID file %s is empty", path)
	}
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("daemonutil: invalid PID in %s: %w", path, err)
	}
	return pid, nil
}
