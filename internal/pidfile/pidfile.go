// Package pidfile guards against a second speech daemon instance by
// claiming a PID file. A stale file left by a crashed instance is
// reclaimed automatically.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile represents this process's claim on a path.
type PIDFile struct {
	path string
	pid  int
}

// New claims the PID file at path for the current process. It fails when
// another live process already holds it; a stale claim is removed first.
func New(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating PID directory: %w", err)
	}

	if data, err := os.ReadFile(path); err == nil {
		if existing, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
			if processAlive(existing) {
				return nil, fmt.Errorf("another instance is already running (PID %d)", existing)
			}
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("removing stale PID file: %w", err)
			}
		}
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644); err != nil {
		return nil, fmt.Errorf("writing PID file: %w", err)
	}
	return &PIDFile{path: path, pid: pid}, nil
}

// Remove releases the claim. It only deletes the file while it still
// carries our own PID, so a successor's claim is never clobbered.
func (p *PIDFile) Remove() error {
	if p == nil {
		return nil
	}
	if data, err := os.ReadFile(p.path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid == p.pid {
			return os.Remove(p.path)
		}
	}
	return nil
}

// processAlive reports whether a process with the given PID exists.
// Signal 0 probes existence without delivering anything.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err == syscall.EPERM {
		// Exists, just not ours to signal.
		return true
	}
	return false
}

// Path returns the conventional PID file location for an application.
func Path(appName string) string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "plates", appName+".pid")
}
