package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 5*time.Second, cfg.OrphanWindow.Duration)
	assert.Equal(t, 30*time.Second, cfg.ReaperInterval.Duration)
	assert.True(t, cfg.Web.ReadOnly)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
socket_path = "/tmp/custom.sock"
orphan_window = "8s"
reaper_interval = "1m"
max_message_bytes = 4096
focus_command = ["open-terminal", "--pid", "{pid}"]

[logs]
enabled = true
level = "debug"
format = "text"

[web]
listen = "127.0.0.1:7777"
read_only = false
token = "hunter2"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.sock", cfg.SocketPath)
	assert.Equal(t, 8*time.Second, cfg.OrphanWindow.Duration)
	assert.Equal(t, time.Minute, cfg.ReaperInterval.Duration)
	assert.Equal(t, 4096, cfg.MaxMessageBytes)
	assert.Equal(t, []string{"open-terminal", "--pid", "{pid}"}, cfg.FocusCommand)
	assert.True(t, cfg.Logs.Enabled)
	assert.Equal(t, "text", cfg.Logs.Format)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, 5, cfg.Logs.MaxBackups)
	assert.Equal(t, "127.0.0.1:7777", cfg.Web.Listen)
	assert.False(t, cfg.Web.ReadOnly)
	assert.Equal(t, "hunter2", cfg.Web.Token)
}

func TestLoadParseErrorReturnsDefaults(t *testing.T) {
	path := writeConfig(t, `orphan_window = "soon"`)

	cfg, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.toml parse error")
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsNegativeDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `reaper_interval = "-5s"`))
	assert.Error(t, err)
}

func TestDirHonoursEnv(t *testing.T) {
	t.Setenv(EnvHome, "/srv/beacon")

	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, "/srv/beacon", dir)

	path, err := Path()
	require.NoError(t, err)
	assert.Equal(t, "/srv/beacon/config.toml", path)

	logs, err := LogDir()
	require.NoError(t, err)
	assert.Equal(t, "/srv/beacon/logs", logs)
}

func TestResolve(t *testing.T) {
	t.Setenv(EnvHome, "/srv/beacon")
	t.Setenv(EnvSocket, "")

	cfg := Config{}.Resolve()
	assert.Equal(t, DefaultSocketPath(), cfg.SocketPath)
	assert.Equal(t, "/srv/beacon/ccbeacon.pid", cfg.PIDFile)
	assert.Equal(t, 5*time.Second, cfg.OrphanWindow.Duration)
	assert.Equal(t, 1<<20, cfg.MaxMessageBytes)

	t.Setenv(EnvSocket, "/run/env.sock")
	cfg = Config{SocketPath: "/tmp/file.sock"}.Resolve()
	assert.Equal(t, "/run/env.sock", cfg.SocketPath)
}

func TestDefaultSocketPathIsPerUID(t *testing.T) {
	assert.Contains(t, DefaultSocketPath(), "ccbeacon-")
	assert.Contains(t, DefaultSocketPath(), ".sock")
}

func TestLoggingConfig(t *testing.T) {
	cfg := Default()

	off := cfg.LoggingConfig("/logs", "run-1", false)
	assert.Empty(t, off.LogDir)
	assert.Equal(t, "run-1", off.RunID)

	cfg.Logs.Enabled = true
	on := cfg.LoggingConfig("/logs", "", false)
	assert.Equal(t, "/logs", on.LogDir)
	assert.Equal(t, "info", on.Level)
	assert.Equal(t, 4*1024*1024, on.RingBufferSize)

	dbg := Default().LoggingConfig("/logs", "", true)
	assert.Equal(t, "/logs", dbg.LogDir)
	assert.Equal(t, "debug", dbg.Level)
	assert.True(t, dbg.Debug)
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte(" 90s ")))
	assert.Equal(t, 90*time.Second, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))
}
