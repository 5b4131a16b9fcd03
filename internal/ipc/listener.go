// Package ipc receives hook events over a local unix socket.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ccbeacon/ccbeacon/internal/event"
	"github.com/ccbeacon/ccbeacon/internal/logging"
)

var ipcLog = logging.ForComponent(logging.CompIPC)

// ErrSocketBind wraps every failure to prepare or bind the socket.
var ErrSocketBind = errors.New("socket bind failed")

const (
	// DefaultMaxMessageBytes caps a single message.
	DefaultMaxMessageBytes = 1 << 20
	readChunkSize          = 4096
)

// Dispatcher receives decoded events in per-connection arrival order.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev event.Event)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, ev event.Event)

func (f DispatchFunc) Dispatch(ctx context.Context, ev event.Event) { f(ctx, ev) }

// Option configures a Listener.
type Option func(*Listener)

// WithMaxMessageBytes overrides DefaultMaxMessageBytes. Zero or less disables the cap.
func WithMaxMessageBytes(n int) Option {
	return func(l *Listener) { l.maxMessage = n }
}

// Listener accepts connections on a unix socket. Each connection is read on
// its own goroutine and may carry any number of newline-delimited messages.
type Listener struct {
	path       string
	ln         net.Listener
	dispatch   Dispatcher
	maxMessage int

	ctx    context.Context
	cancel context.CancelFunc

	warnMalformed rate.Sometimes
	warnOversize  rate.Sometimes

	mu        sync.Mutex
	conns     map[net.Conn]struct{}
	closed    bool
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Listen removes a stale socket at path, binds a new one and opens it to all
// local users. Every failure wraps ErrSocketBind.
func Listen(path string, d Dispatcher, opts ...Option) (*Listener, error) {
	if err := removeStale(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create socket dir: %v", ErrSocketBind, err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSocketBind, err)
	}
	if err := os.Chmod(path, 0o777); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("%w: chmod %s: %v", ErrSocketBind, path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		path:          path,
		ln:            ln,
		dispatch:      d,
		maxMessage:    DefaultMaxMessageBytes,
		ctx:           ctx,
		cancel:        cancel,
		warnMalformed: rate.Sometimes{First: 3, Interval: 30 * time.Second},
		warnOversize:  rate.Sometimes{First: 3, Interval: 30 * time.Second},
		conns:         make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	ipcLog.Info("listening", slog.String("socket", path))
	return l, nil
}

func removeStale(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrSocketBind, path, err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%w: %s exists and is not a socket", ErrSocketBind, path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: remove stale socket: %v", ErrSocketBind, err)
	}
	ipcLog.Debug("stale_socket_removed", slog.String("socket", path))
	return nil
}

// Path returns the socket path.
func (l *Listener) Path() string { return l.path }

// Serve accepts connections until ctx is cancelled or Close is called.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-l.ctx.Done():
		}
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			ipcLog.Warn("accept_failed", slog.String("error", err.Error()))
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if !l.track(conn) {
			_ = conn.Close()
			return nil
		}
		logging.Aggregate(logging.CompIPC, "connection_accepted")
		go l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	defer l.wg.Done()
	defer l.untrack(conn)

	frames := newLineBuffer(l.maxMessage)
	chunk := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			for _, line := range frames.Feed(chunk[:n]) {
				l.deliver(line)
			}
			l.reportDropped(frames)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !l.isClosed() {
				ipcLog.Debug("connection_read_error", slog.String("error", err.Error()))
			}
			if line, ok := frames.Flush(); ok {
				l.deliver(line)
			}
			l.reportDropped(frames)
			return
		}
	}
}

func (l *Listener) deliver(line []byte) {
	ev, err := event.Decode(line)
	if err != nil {
		logging.Aggregate(logging.CompIPC, "malformed_message")
		l.warnMalformed.Do(func() {
			ipcLog.Warn("malformed_message",
				slog.String("error", err.Error()),
				slog.Int("bytes", len(line)))
		})
		return
	}
	l.dispatch.Dispatch(l.ctx, ev)
}

func (l *Listener) reportDropped(frames *lineBuffer) {
	n := frames.Dropped()
	if n == 0 {
		return
	}
	logging.Aggregate(logging.CompIPC, "oversized_message", slog.Int("dropped", n))
	l.warnOversize.Do(func() {
		ipcLog.Warn("oversized_message", slog.Int("limit_bytes", l.maxMessage), slog.Int("dropped", n))
	})
}

func (l *Listener) track(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.conns[conn] = struct{}{}
	l.wg.Add(1)
	return true
}

// untrack closes conn unless Close already did.
func (l *Listener) untrack(conn net.Conn) {
	l.mu.Lock()
	_, ok := l.conns[conn]
	delete(l.conns, conn)
	l.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Close stops accepting, closes open connections, waits for their handlers
// and removes the socket file. Calling it again returns the first result.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		conns := make([]net.Conn, 0, len(l.conns))
		for c := range l.conns {
			conns = append(conns, c)
		}
		l.conns = make(map[net.Conn]struct{})
		l.mu.Unlock()

		l.cancel()
		if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			l.closeErr = err
		}
		for _, c := range conns {
			_ = c.Close()
		}
		l.wg.Wait()

		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) && l.closeErr == nil {
			l.closeErr = err
		}
		ipcLog.Info("listener_closed", slog.String("socket", l.path))
	})
	return l.closeErr
}
