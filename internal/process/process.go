// Package process answers "is this pid still running" without delivering a signal.
package process

import (
	"errors"
	"syscall"
)

// Prober reports whether a process exists.
type Prober interface {
	Alive(pid int) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(pid int) bool

// Alive calls f(pid).
func (f ProberFunc) Alive(pid int) bool { return f(pid) }

// OS probes the kernel process table with signal 0.
var OS Prober = ProberFunc(Alive)

// Alive sends signal 0 to pid. ESRCH means the process is gone; EPERM means it
// exists but belongs to someone else, which still counts as alive. A recycled
// pid reads as alive.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
