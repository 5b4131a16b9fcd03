package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/ccbeacon/ccbeacon/internal/config"
	"github.com/ccbeacon/ccbeacon/internal/hooks"
	"github.com/ccbeacon/ccbeacon/internal/ipc"
	"github.com/ccbeacon/ccbeacon/internal/logging"
)

var hookLog = logging.ForComponent(logging.CompHooks)

// emitTimeout caps the whole emit so a wedged daemon never stalls a hook.
const emitTimeout = 2 * time.Second

// maxPayloadBytes bounds how much of stdin is read.
const maxPayloadBytes = 1 << 20

var errUntracked = errors.New("hook event is not tracked")

// EmitCmd forwards one hook invocation to the daemon.
type EmitCmd struct {
	EventType string `arg:"" optional:"" name:"event-type" help:"Wire event type; derived from hook_event_name when omitted"`
	PID       int    `name:"pid" default:"-1" help:"Session process id; -1 uses the parent process, 0 omits it"`
	Socket    string `help:"Socket path (overrides CCBEACON_SOCKET and socket_path)" type:"path"`
	Verbose   bool   `short:"v" help:"Report send failures on stderr"`
}

// Run never fails: a hook that exits non-zero would surface in the assistant.
func (e *EmitCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	err := e.run(ctx, e.socketPath(cli), os.Stdin, interactive, os.Getppid())
	if err != nil && !errors.Is(err, errUntracked) && e.Verbose {
		fmt.Fprintf(os.Stderr, "ccbeacon emit: %v\n", err)
	}
	return nil
}

// socketPath applies flag > env > config file > default.
func (e *EmitCmd) socketPath(cli *CLI) string {
	if e.Socket != "" {
		return e.Socket
	}
	cfg := config.Default()
	if path := cli.configPath(); path != "" {
		if loaded, err := config.Load(path); err == nil {
			cfg = loaded
		}
	}
	return cfg.Resolve().SocketPath
}

func (e *EmitCmd) run(ctx context.Context, socket string, stdin io.Reader, interactive bool, ppid int) error {
	var data []byte
	if !interactive && stdin != nil {
		var err error
		data, err = io.ReadAll(io.LimitReader(stdin, maxPayloadBytes))
		if err != nil {
			return fmt.Errorf("read hook payload: %w", err)
		}
	}

	payload, err := hooks.ParsePayload(data)
	if err != nil {
		hookLog.Debug("hook_payload_invalid", slog.String("error", err.Error()))
		// The explicit event type may still be enough to track something.
		payload = hooks.Payload{}
	}

	pid := e.PID
	if pid < 0 {
		pid = ppid
	}

	ev := payload.Event(e.EventType, pid)
	if ev.Type == "" {
		return errUntracked
	}
	if err := ipc.Send(ctx, socket, ev); err != nil {
		hookLog.Debug("hook_send_failed", slog.String("socket", socket), slog.String("error", err.Error()))
		return err
	}
	return nil
}
