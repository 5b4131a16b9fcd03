// Package focus hands a session pid to an external command that raises the
// terminal owning it.
package focus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ccbeacon/ccbeacon/internal/logging"
)

var focusLog = logging.ForComponent(logging.CompFocus)

// PIDPlaceholder is replaced by the session pid in every argument.
const PIDPlaceholder = "{pid}"

// ErrNotConfigured is returned when no focus command is set.
var ErrNotConfigured = errors.New("focus_command is not configured")

const commandTimeout = 10 * time.Second

// Command runs Argv with PIDPlaceholder substituted.
type Command struct {
	Argv []string
}

// New returns a Command for argv. An empty argv yields a focuser that always
// fails with ErrNotConfigured.
func New(argv []string) *Command {
	return &Command{Argv: append([]string(nil), argv...)}
}

// Args returns argv with the placeholder replaced.
func (c *Command) Args(pid int) []string {
	out := make([]string, len(c.Argv))
	p := strconv.Itoa(pid)
	for i, a := range c.Argv {
		out[i] = strings.ReplaceAll(a, PIDPlaceholder, p)
	}
	return out
}

// Focus runs the command and waits for it.
func (c *Command) Focus(ctx context.Context, pid int) error {
	if len(c.Argv) == 0 {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	args := c.Args(pid)
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		focusLog.Warn("focus_failed",
			slog.Int("pid", pid),
			slog.String("command", args[0]),
			slog.String("error", err.Error()),
			slog.String("output", strings.TrimSpace(string(out))))
		return fmt.Errorf("focus command %s: %w", args[0], err)
	}
	focusLog.Debug("focus_ran", slog.Int("pid", pid), slog.String("command", args[0]))
	return nil
}
