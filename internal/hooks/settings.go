// Package hooks wires ccbeacon into the assistant's settings.json and maps the
// payloads those hooks receive onto wire events.
package hooks

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ccbeacon/ccbeacon/internal/event"
	"github.com/ccbeacon/ccbeacon/internal/logging"
)

var hooksLog = logging.ForComponent(logging.CompHooks)

// SettingsFileName is the file edited inside the assistant config dir.
const SettingsFileName = "settings.json"

// commandMarker identifies entries owned by ccbeacon.
const commandMarker = "ccbeacon emit"

type hookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// hookMatcher keeps entries raw so fields ccbeacon does not know survive a rewrite.
type hookMatcher struct {
	Matcher string            `json:"matcher,omitempty"`
	Hooks   []json.RawMessage `json:"hooks"`
}

func commandOf(raw json.RawMessage) string {
	var h hookEntry
	if err := json.Unmarshal(raw, &h); err != nil {
		return ""
	}
	return h.Command
}

// Binding is one hook registration: the assistant event, an optional matcher
// and the wire event type it emits.
type Binding struct {
	HookEvent string
	Matcher   string
	EventType string
}

// Command is the shell command written for b.
func (b Binding) Command() string {
	return commandMarker + " " + b.EventType
}

// Bindings lists every registration Install writes.
var Bindings = []Binding{
	{HookEvent: "SessionStart", EventType: event.TypeSessionStart},
	{HookEvent: "UserPromptSubmit", EventType: event.TypeUserPrompt},
	{HookEvent: "PreToolUse", EventType: event.TypePreToolUse},
	{HookEvent: "Stop", EventType: event.TypeStop},
	{HookEvent: "Notification", Matcher: "idle_prompt", EventType: event.TypeIdlePrompt},
	{HookEvent: "Notification", Matcher: "permission_prompt", EventType: event.TypePermissionPrompt},
	{HookEvent: "SessionEnd", EventType: event.TypeSessionEnd},
}

// DefaultConfigDir is $CLAUDE_CONFIG_DIR or ~/.claude.
func DefaultConfigDir() (string, error) {
	if dir := os.Getenv("CLAUDE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".claude"), nil
}

// Install adds ccbeacon entries to configDir/settings.json, keeping every other
// setting and hook. It returns false when all bindings were already present.
func Install(configDir string) (bool, error) {
	settings, err := readSettings(configDir)
	if err != nil {
		return false, err
	}
	hooks := hooksSection(settings)
	if allInstalled(hooks) {
		return false, nil
	}

	for _, b := range Bindings {
		hooks[b.HookEvent] = addBinding(hooks[b.HookEvent], b)
	}
	if err := writeSettings(configDir, settings, hooks); err != nil {
		return false, err
	}
	hooksLog.Info("hooks_installed", slog.String("config_dir", configDir))
	return true, nil
}

// Uninstall removes ccbeacon entries. It returns false when none were found.
func Uninstall(configDir string) (bool, error) {
	path := filepath.Join(configDir, SettingsFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	settings, err := readSettings(configDir)
	if err != nil {
		return false, err
	}
	hooks := hooksSection(settings)

	removed := false
	for name, raw := range hooks {
		cleaned, did := stripOwned(raw)
		if !did {
			continue
		}
		removed = true
		if cleaned == nil {
			delete(hooks, name)
		} else {
			hooks[name] = cleaned
		}
	}
	if !removed {
		return false, nil
	}
	if err := writeSettings(configDir, settings, hooks); err != nil {
		return false, err
	}
	hooksLog.Info("hooks_removed", slog.String("config_dir", configDir))
	return true, nil
}

// Installed reports whether every binding is present.
func Installed(configDir string) bool {
	settings, err := readSettings(configDir)
	if err != nil {
		return false
	}
	return allInstalled(hooksSection(settings))
}

// Wrapped returns ccbeacon hook commands that run inside a compound shell
// command without an explicit --pid. The shell does not exec emit there, so
// the pid emit reports is the short-lived shell and the reaper drops the
// session on its next sweep.
func Wrapped(configDir string) ([]string, error) {
	settings, err := readSettings(configDir)
	if err != nil {
		return nil, err
	}
	hooks := hooksSection(settings)
	names := make([]string, 0, len(hooks))
	for name := range hooks {
		names = append(names, name)
	}
	sort.Strings(names)

	var wrapped []string
	for _, name := range names {
		for _, m := range decodeMatchers(hooks[name]) {
			for _, h := range m.Hooks {
				if cmd := commandOf(h); isWrapped(cmd) {
					wrapped = append(wrapped, cmd)
				}
			}
		}
	}
	return wrapped, nil
}

func isWrapped(cmd string) bool {
	if !strings.Contains(cmd, commandMarker) || strings.Contains(cmd, "--pid") {
		return false
	}
	return strings.ContainsAny(cmd, ";&|\n`") || strings.Contains(cmd, "$(")
}

func readSettings(configDir string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(filepath.Join(configDir, SettingsFileName))
	if os.IsNotExist(err) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings.json: %w", err)
	}
	var settings map[string]json.RawMessage
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse settings.json: %w", err)
	}
	if settings == nil {
		settings = make(map[string]json.RawMessage)
	}
	return settings, nil
}

// hooksSection decodes the "hooks" object; a missing or invalid one is empty.
func hooksSection(settings map[string]json.RawMessage) map[string]json.RawMessage {
	hooks := make(map[string]json.RawMessage)
	if raw, ok := settings["hooks"]; ok {
		if err := json.Unmarshal(raw, &hooks); err != nil || hooks == nil {
			hooks = make(map[string]json.RawMessage)
		}
	}
	return hooks
}

func writeSettings(configDir string, settings, hooks map[string]json.RawMessage) error {
	if len(hooks) == 0 {
		delete(settings, "hooks")
	} else {
		raw, err := json.Marshal(hooks)
		if err != nil {
			return fmt.Errorf("marshal hooks: %w", err)
		}
		settings["hooks"] = raw
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	path := filepath.Join(configDir, SettingsFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write settings.json.tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename settings.json: %w", err)
	}
	return nil
}

func allInstalled(hooks map[string]json.RawMessage) bool {
	for _, b := range Bindings {
		if !hasBinding(hooks[b.HookEvent], b) {
			return false
		}
	}
	return true
}

func decodeMatchers(raw json.RawMessage) []hookMatcher {
	if raw == nil {
		return nil
	}
	var matchers []hookMatcher
	if err := json.Unmarshal(raw, &matchers); err != nil {
		return nil
	}
	return matchers
}

func hasBinding(raw json.RawMessage, b Binding) bool {
	for _, m := range decodeMatchers(raw) {
		if m.Matcher != b.Matcher {
			continue
		}
		for _, h := range m.Hooks {
			if commandOf(h) == b.Command() {
				return true
			}
		}
	}
	return false
}

// addBinding appends b's command under its matcher, creating the matcher block
// if needed. Existing entries are preserved.
func addBinding(raw json.RawMessage, b Binding) json.RawMessage {
	matchers := decodeMatchers(raw)
	entry, _ := json.Marshal(hookEntry{Type: "command", Command: b.Command(), Timeout: 5})

	placed := false
	for i, m := range matchers {
		if m.Matcher != b.Matcher {
			continue
		}
		for _, h := range m.Hooks {
			if commandOf(h) == b.Command() {
				placed = true
			}
		}
		if !placed {
			matchers[i].Hooks = append(matchers[i].Hooks, entry)
			placed = true
		}
		break
	}
	if !placed {
		matchers = append(matchers, hookMatcher{Matcher: b.Matcher, Hooks: []json.RawMessage{entry}})
	}
	out, _ := json.Marshal(matchers)
	return out
}

// stripOwned drops ccbeacon entries and any matcher left empty. It returns nil
// when nothing remains.
func stripOwned(raw json.RawMessage) (json.RawMessage, bool) {
	var matchers []hookMatcher
	if err := json.Unmarshal(raw, &matchers); err != nil {
		return raw, false
	}

	removed := false
	var kept []hookMatcher
	for _, m := range matchers {
		var entries []json.RawMessage
		for _, h := range m.Hooks {
			if strings.HasPrefix(commandOf(h), commandMarker) {
				removed = true
				continue
			}
			entries = append(entries, h)
		}
		if len(entries) > 0 {
			m.Hooks = entries
			kept = append(kept, m)
		}
	}
	if !removed {
		return raw, false
	}
	if len(kept) == 0 {
		return nil, true
	}
	out, _ := json.Marshal(kept)
	return out, true
}
