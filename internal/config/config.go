// Package config loads ~/.ccbeacon/config.toml and resolves per-user paths.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ccbeacon/ccbeacon/internal/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

const (
	DirName     = ".ccbeacon"
	FileName    = "config.toml"
	PIDFileName = "ccbeacon.pid"
	LogsDirName = "logs"

	// EnvHome relocates the base directory.
	EnvHome = "CCBEACON_HOME"
	// EnvSocket overrides the socket path.
	EnvSocket = "CCBEACON_SOCKET"
)

// Duration decodes TOML strings such as "5s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", text)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the on-disk configuration.
type Config struct {
	// SocketPath defaults to /tmp/ccbeacon-<uid>.sock.
	SocketPath string `toml:"socket_path"`

	// PIDFile defaults to <dir>/ccbeacon.pid.
	PIDFile string `toml:"pid_file"`

	// OrphanWindow is how recent a same-cwd session must be for a resumed
	// start to discard it.
	OrphanWindow Duration `toml:"orphan_window"`

	ReaperInterval  Duration `toml:"reaper_interval"`
	MaxMessageBytes int      `toml:"max_message_bytes"`

	// FocusCommand is run with "{pid}" replaced by the session pid. Empty
	// disables focus.
	FocusCommand []string `toml:"focus_command"`

	Logs LogsConfig `toml:"logs"`
	Web  WebConfig  `toml:"web"`
}

// LogsConfig mirrors logging.Config.
type LogsConfig struct {
	Enabled               bool   `toml:"enabled"`
	Level                 string `toml:"level"`
	Format                string `toml:"format"`
	MaxSizeMB             int    `toml:"max_size_mb"`
	MaxBackups            int    `toml:"max_backups"`
	MaxAgeDays            int    `toml:"max_age_days"`
	Compress              bool   `toml:"compress"`
	RingBufferMB          int    `toml:"ring_buffer_mb"`
	AggregateIntervalSecs int    `toml:"aggregate_interval_secs"`
}

// WebConfig configures the optional HTTP view.
type WebConfig struct {
	// Listen is a host:port; empty disables the server.
	Listen string `toml:"listen"`

	// ReadOnly hides the forget and focus endpoints.
	ReadOnly bool `toml:"read_only"`

	// Token, when set, must accompany every request as ?token= or a bearer header.
	Token string `toml:"token"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		OrphanWindow:    Duration{5 * time.Second},
		ReaperInterval:  Duration{30 * time.Second},
		MaxMessageBytes: 1 << 20,
		Logs: LogsConfig{
			Level:                 "info",
			Format:                "json",
			MaxSizeMB:             10,
			MaxBackups:            5,
			MaxAgeDays:            10,
			Compress:              true,
			RingBufferMB:          4,
			AggregateIntervalSecs: 30,
		},
		Web: WebConfig{ReadOnly: true},
	}
}

// Dir returns $CCBEACON_HOME or ~/.ccbeacon.
func Dir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Path returns the config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// LogDir returns the directory for rotated log files.
func LogDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, LogsDirName), nil
}

// DefaultSocketPath is per uid so users on one host do not collide.
func DefaultSocketPath() string {
	return fmt.Sprintf("/tmp/ccbeacon-%d.sock", os.Getuid())
}

// Load decodes path over Default. A missing file yields the defaults with no
// error. On a parse error the defaults are still returned alongside it.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Default(), fmt.Errorf("config.toml parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		configLog.Warn("config_unknown_keys", slog.String("path", path), slog.String("keys", strings.Join(keys, ",")))
	}
	return cfg, nil
}

// Resolve fills empty paths and applies environment overrides. Call it after
// Load and before applying command-line flags.
func (c Config) Resolve() Config {
	if env := os.Getenv(EnvSocket); env != "" {
		c.SocketPath = env
	}
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath()
	}
	if c.PIDFile == "" {
		if dir, err := Dir(); err == nil {
			c.PIDFile = filepath.Join(dir, PIDFileName)
		}
	}
	def := Default()
	if c.OrphanWindow.Duration <= 0 {
		c.OrphanWindow = def.OrphanWindow
	}
	if c.ReaperInterval.Duration <= 0 {
		c.ReaperInterval = def.ReaperInterval
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = def.MaxMessageBytes
	}
	return c
}

// LoggingConfig converts the [logs] table. debug forces logging on.
func (c Config) LoggingConfig(logDir, runID string, debug bool) logging.Config {
	lc := logging.Config{
		Level:                 c.Logs.Level,
		Format:                c.Logs.Format,
		MaxSizeMB:             c.Logs.MaxSizeMB,
		MaxBackups:            c.Logs.MaxBackups,
		MaxAgeDays:            c.Logs.MaxAgeDays,
		Compress:              c.Logs.Compress,
		RingBufferSize:        c.Logs.RingBufferMB * 1024 * 1024,
		AggregateIntervalSecs: c.Logs.AggregateIntervalSecs,
		RunID:                 runID,
		Debug:                 debug,
	}
	if debug {
		lc.Level = "debug"
	}
	if debug || c.Logs.Enabled {
		lc.LogDir = logDir
	}
	return lc
}
