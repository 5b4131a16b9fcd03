package ipc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ccbeacon/ccbeacon/internal/event"
)

// DialTimeout bounds how long a hook waits for the daemon.
const DialTimeout = 500 * time.Millisecond

// Send writes ev as one line to the daemon listening at path.
func Send(ctx context.Context, path string, ev event.Event) error {
	data, err := event.Encode(ev)
	if err != nil {
		return err
	}

	d := net.Dialer{Timeout: DialTimeout}
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("dial %s: %w", path, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(DialTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetWriteDeadline(deadline)

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
