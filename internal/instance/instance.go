// Package instance keeps a single daemon per user by recording the owning pid
// in a marker file.
package instance

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ccbeacon/ccbeacon/internal/logging"
	"github.com/ccbeacon/ccbeacon/internal/process"
)

var instanceLog = logging.ForComponent(logging.CompCLI)

// ErrAlreadyRunning is matched by errors.Is for *AlreadyRunningError.
var ErrAlreadyRunning = errors.New("another instance is already running")

// AlreadyRunningError names the live process holding the marker.
type AlreadyRunningError struct {
	PID  int
	Path string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("another instance is already running (pid %d, marker %s)", e.PID, e.Path)
}

func (e *AlreadyRunningError) Is(target error) bool { return target == ErrAlreadyRunning }

// Lock is a held pid marker.
type Lock struct {
	path string
	pid  int
}

// Acquire claims the marker at path for the current process. If the marker
// names another live process, it returns *AlreadyRunningError and leaves the
// file untouched. A stale or unreadable marker is overwritten.
func Acquire(path string, prober process.Prober) (*Lock, error) {
	if prober == nil {
		prober = process.OS
	}
	self := os.Getpid()

	if pid, err := ReadPID(path); err == nil && pid != self && prober.Alive(pid) {
		return nil, &AlreadyRunningError{PID: pid, Path: path}
	} else if err == nil && pid != self {
		instanceLog.Info("stale_marker_replaced", slog.String("path", path), slog.Int("stale_pid", pid))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create marker dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(self)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write marker: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("rename marker: %w", err)
	}
	return &Lock{path: path, pid: self}, nil
}

// ReadPID returns the pid recorded in the marker at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse marker %s: %w", path, err)
	}
	return pid, nil
}

// Path returns the marker location.
func (l *Lock) Path() string { return l.path }

// Release removes the marker if it still names this process. Safe to call twice.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	pid, err := ReadPID(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if pid != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
