package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/ccbeacon/ccbeacon/internal/config"
	"github.com/ccbeacon/ccbeacon/internal/focus"
	"github.com/ccbeacon/ccbeacon/internal/instance"
	"github.com/ccbeacon/ccbeacon/internal/ipc"
	"github.com/ccbeacon/ccbeacon/internal/logging"
	"github.com/ccbeacon/ccbeacon/internal/process"
	"github.com/ccbeacon/ccbeacon/internal/session"
	"github.com/ccbeacon/ccbeacon/internal/ui"
	"github.com/ccbeacon/ccbeacon/internal/web"
)

var cliLog = logging.ForComponent(logging.CompCLI)

// ServeCmd runs the daemon: socket listener, session engine, reaper, config
// watcher and the optional web and terminal views.
type ServeCmd struct {
	TUI    bool   `name:"tui" help:"Show the interactive session list"`
	Web    string `help:"Serve the HTTP view on this address (overrides [web] listen)" placeholder:"ADDR"`
	Debug  bool   `help:"Write debug logs to ~/.ccbeacon/logs"`
	Socket string `help:"Socket path (overrides CCBEACON_SOCKET and socket_path)" type:"path"`
}

// resolve loads the config file and applies environment and flag overrides.
// A parse error is returned alongside the defaults.
func (s *ServeCmd) resolve(path string) (config.Config, error) {
	var (
		cfg     config.Config
		loadErr error
	)
	if path == "" {
		cfg = config.Default()
	} else {
		cfg, loadErr = config.Load(path)
	}
	cfg = cfg.Resolve()
	if s.Socket != "" {
		cfg.SocketPath = s.Socket
	}
	if s.Web != "" {
		cfg.Web.Listen = s.Web
	}
	return cfg, loadErr
}

func (s *ServeCmd) Run(cli *CLI) error {
	if s.TUI && !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("--tui requires a terminal")
	}

	cfgPath := cli.configPath()
	cfg, cfgErr := s.resolve(cfgPath)

	baseDir, _ := config.Dir()
	logDir, _ := config.LogDir()
	runID := uuid.NewString()
	logging.Init(cfg.LoggingConfig(logDir, runID, s.Debug))
	defer logging.Shutdown()

	if cfgErr != nil {
		cliLog.Warn("config_load_failed", slog.String("path", cfgPath), slog.String("error", cfgErr.Error()))
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", cfgErr)
	}

	lock, err := instance.Acquire(cfg.PIDFile, process.OS)
	if err != nil {
		var running *instance.AlreadyRunningError
		if errors.As(err, &running) {
			cliLog.Info("already_running", slog.Int("pid", running.PID))
			fmt.Printf("ccbeacon is already running (pid %d)\n", running.PID)
			return nil
		}
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			cliLog.Warn("lock_release_failed", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engine := session.NewEngine(
		session.WithOrphanWindow(cfg.OrphanWindow.Duration),
		session.WithReaperInterval(cfg.ReaperInterval.Duration),
	)

	ln, err := ipc.Listen(cfg.SocketPath, engine, ipc.WithMaxMessageBytes(cfg.MaxMessageBytes))
	if err != nil {
		cliLog.Error("socket_bind_failed", slog.String("socket", cfg.SocketPath), slog.String("error", err.Error()))
		return err
	}
	defer ln.Close()

	var focuser session.Focuser
	if len(cfg.FocusCommand) > 0 {
		focuser = focus.New(cfg.FocusCommand)
	}

	cliLog.Info("serve_started",
		slog.String("version", version),
		slog.String("socket", cfg.SocketPath),
		slog.String("pid_file", cfg.PIDFile),
		slog.Bool("tui", s.TUI),
		slog.String("web", cfg.Web.Listen))
	if !s.TUI {
		fmt.Fprintf(os.Stderr, "ccbeacon %s listening on %s\n", version, cfg.SocketPath)
	}

	go dumpOnSIGUSR1(ctx, baseDir)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return ln.Serve(gctx) })

	if cfgPath != "" {
		watcher, err := config.NewWatcher(cfgPath, func(next config.Config, err error) {
			if err != nil {
				return
			}
			next = next.Resolve()
			setCtx, done := context.WithTimeout(gctx, 2*time.Second)
			defer done()
			if err := engine.SetTimings(setCtx, next.OrphanWindow.Duration, next.ReaperInterval.Duration); err != nil {
				cliLog.Debug("timings_update_skipped", slog.String("error", err.Error()))
			}
		})
		if err != nil {
			cliLog.Warn("config_watcher_disabled", slog.String("error", err.Error()))
		} else {
			g.Go(func() error { return watcher.Run(gctx) })
		}
	}

	if cfg.Web.Listen != "" {
		srv := web.NewServer(web.Config{
			ListenAddr: cfg.Web.Listen,
			ReadOnly:   cfg.Web.ReadOnly,
			Token:      cfg.Web.Token,
			Version:    version,
			Sessions:   engine,
			Actions:    engine,
			Focuser:    focuser,
		})
		g.Go(func() error { return srv.Run(gctx) })
	}

	if s.TUI {
		g.Go(func() error {
			defer cancel()
			return ui.Run(gctx, engine, focuser)
		})
	}

	err = g.Wait()
	cliLog.Info("serve_stopped")
	return err
}

// dumpOnSIGUSR1 writes the in-memory log tail to baseDir for post-mortem debugging.
func dumpOnSIGUSR1(ctx context.Context, baseDir string) {
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)

	for {
		select {
		case <-ctx.Done():
			return
		case <-usr1:
			path := filepath.Join(baseDir, fmt.Sprintf("log-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(path); err != nil {
				cliLog.Error("log_dump_failed", slog.String("error", err.Error()))
			} else {
				cliLog.Info("log_dump_written", slog.String("path", path))
			}
		}
	}
}
