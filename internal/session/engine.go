package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ccbeacon/ccbeacon/internal/event"
	"github.com/ccbeacon/ccbeacon/internal/logging"
	"github.com/ccbeacon/ccbeacon/internal/process"
)

var (
	sessionLog = logging.ForComponent(logging.CompSession)
	reaperLog  = logging.ForComponent(logging.CompReaper)
)

// Focuser brings the terminal that owns pid to the front.
type Focuser interface {
	Focus(ctx context.Context, pid int) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithProber replaces the OS liveness probe used by the reaper.
func WithProber(p process.Prober) Option {
	return func(e *Engine) { e.reaper.Prober = p }
}

// WithOrphanWindow overrides DefaultOrphanWindow.
func WithOrphanWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.machine.OrphanWindow = d
		}
	}
}

// WithReaperInterval overrides DefaultReaperInterval.
func WithReaperInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.reaperInterval = d
		}
	}
}

// WithOnChange registers a callback run on the engine goroutine after every
// store mutation. It must not call back into the engine.
func WithOnChange(fn func()) Option {
	return func(e *Engine) { e.onChange = fn }
}

// Engine owns the session store. Events, reads and the reaper tick are all
// handled on the goroutine running Run, so the store needs no lock.
type Engine struct {
	store   *Store
	machine *Machine
	reaper  *Reaper

	now            func() time.Time
	reaperInterval time.Duration
	ticker         *time.Ticker
	onChange       func()

	events chan event.Event
	calls  chan func()
	done   chan struct{}
	start  sync.Once
	stop   sync.Once

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// NewEngine builds an engine. Call Run to start it.
func NewEngine(opts ...Option) *Engine {
	store := NewStore()
	e := &Engine{
		store:          store,
		now:            time.Now,
		reaperInterval: DefaultReaperInterval,
		events:         make(chan event.Event),
		calls:          make(chan func()),
		done:           make(chan struct{}),
		subs:           make(map[int]chan struct{}),
	}
	e.machine = &Machine{Store: store, OrphanWindow: DefaultOrphanWindow}
	e.reaper = &Reaper{Store: store, Prober: process.OS}
	for _, opt := range opts {
		opt(e)
	}
	e.machine.Now = e.now
	e.machine.Notify = e.notify
	return e
}

// Run processes events until ctx is cancelled. It returns nil on cancellation
// and ErrEngineStopped if called a second time.
func (e *Engine) Run(ctx context.Context) error {
	started := false
	e.start.Do(func() { started = true })
	if !started {
		return ErrEngineStopped
	}
	defer e.stop.Do(func() { close(e.done) })

	e.ticker = time.NewTicker(e.reaperInterval)
	defer e.ticker.Stop()

	sessionLog.Info("engine_started",
		slog.Duration("orphan_window", e.machine.OrphanWindow),
		slog.Duration("reaper_interval", e.reaperInterval))

	for {
		select {
		case <-ctx.Done():
			sessionLog.Info("engine_stopped", slog.Int("sessions", e.store.Len()))
			return nil
		case ev := <-e.events:
			e.apply(ev)
		case fn := <-e.calls:
			fn()
		case <-e.ticker.C:
			e.sweep()
		}
	}
}

// Submit hands ev to the engine loop. Events from one caller are applied in
// the order submitted.
func (e *Engine) Submit(ctx context.Context, ev event.Event) error {
	select {
	case e.events <- ev:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch adapts Submit for the socket listener.
func (e *Engine) Dispatch(ctx context.Context, ev event.Event) {
	if err := e.Submit(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		sessionLog.Debug("event_dropped", slog.String("event_type", ev.Type), slog.String("error", err.Error()))
	}
}

func (e *Engine) apply(ev event.Event) {
	orphans, err := e.machine.Apply(ev)
	if err != nil {
		logging.Aggregate(logging.CompSession, "event_unresolvable", slog.String("event_type", ev.Type))
		sessionLog.Debug("event_unresolvable",
			slog.String("event_type", ev.Type),
			slog.String("transcript_path", ev.TranscriptPath))
		return
	}
	for _, id := range orphans {
		sessionLog.Info("orphan_removed", slog.String("session", id), slog.String("cwd", ev.Cwd))
	}
	logging.Aggregate(logging.CompSession, "event_applied", slog.String("event_type", ev.Type))
}

func (e *Engine) sweep() {
	removed := e.reaper.Sweep()
	if len(removed) == 0 {
		return
	}
	for _, id := range removed {
		reaperLog.Info("session_reaped", slog.String("session", id))
	}
	e.notify()
}

// do runs fn on the engine goroutine and waits for it to finish. ctx only
// bounds the hand-off: once the loop has taken fn, do waits for it, since fn
// writes the caller's variables.
func (e *Engine) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		fn()
		close(finished)
	}
	select {
	case e.calls <- wrapped:
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Snapshot returns a sorted copy of every session with display strings.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.do(ctx, func() {
		snap = NewSnapshot(e.store.All(), e.now())
	})
	return snap, err
}

// Lookup returns one session by id.
func (e *Engine) Lookup(ctx context.Context, id string) (Session, error) {
	var (
		sess Session
		ok   bool
	)
	if err := e.do(ctx, func() { sess, ok = e.store.Get(id) }); err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// Forget removes a session from the view without waiting for its end event.
func (e *Engine) Forget(ctx context.Context, id string) error {
	var removed bool
	err := e.do(ctx, func() {
		if removed = e.store.Remove(id); removed {
			e.notify()
		}
	})
	if err != nil {
		return err
	}
	if !removed {
		return ErrSessionNotFound
	}
	sessionLog.Info("session_forgotten", slog.String("session", id))
	return nil
}

// Focus resolves id to its pid and passes it to f. The focuser runs on the
// caller's goroutine.
func (e *Engine) Focus(ctx context.Context, id string, f Focuser) error {
	sess, err := e.Lookup(ctx, id)
	if err != nil {
		return err
	}
	if sess.PID <= 0 {
		return ErrNoProcess
	}
	return f.Focus(ctx, sess.PID)
}

// SetTimings updates the orphan window and reaper interval of a running
// engine. Non-positive values keep the current setting.
func (e *Engine) SetTimings(ctx context.Context, orphanWindow, reaperInterval time.Duration) error {
	return e.do(ctx, func() {
		if orphanWindow > 0 {
			e.machine.OrphanWindow = orphanWindow
		}
		if reaperInterval > 0 && reaperInterval != e.reaperInterval {
			e.reaperInterval = reaperInterval
			e.ticker.Reset(reaperInterval)
		}
		sessionLog.Info("timings_updated",
			slog.Duration("orphan_window", e.machine.OrphanWindow),
			slog.Duration("reaper_interval", e.reaperInterval))
	})
}

// Subscribe returns a channel that receives a value after store mutations.
// Notifications coalesce: a slow reader sees at most one pending signal.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
		})
	}
}

func (e *Engine) notify() {
	if e.onChange != nil {
		e.onChange()
	}
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
