package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ccbeacon/ccbeacon/internal/hooks"
)

// HooksCmd manages the assistant's hook entries.
type HooksCmd struct {
	Install   HooksInstallCmd   `cmd:"" help:"Add ccbeacon hook entries to settings.json"`
	Uninstall HooksUninstallCmd `cmd:"" help:"Remove ccbeacon hook entries from settings.json"`
	Status    HooksStatusCmd    `cmd:"" help:"Report whether the hook entries are installed"`
}

// HooksDirFlag is shared by the hooks subcommands.
type HooksDirFlag struct {
	ConfigDir string `name:"config-dir" help:"Assistant config directory (default: $CLAUDE_CONFIG_DIR or ~/.claude)" type:"path" env:"CLAUDE_CONFIG_DIR"`
}

func (f HooksDirFlag) dir() (string, error) {
	if f.ConfigDir != "" {
		return f.ConfigDir, nil
	}
	return hooks.DefaultConfigDir()
}

type HooksInstallCmd struct {
	HooksDirFlag `embed:""`
}

func (c *HooksInstallCmd) Run() error {
	return c.run(os.Stdout)
}

func (c *HooksInstallCmd) run(out io.Writer) error {
	dir, err := c.dir()
	if err != nil {
		return err
	}
	installed, err := hooks.Install(dir)
	if err != nil {
		return fmt.Errorf("installing hooks: %w", err)
	}
	if installed {
		fmt.Fprintln(out, "Hooks installed.")
		fmt.Fprintf(out, "Config: %s\n", filepath.Join(dir, hooks.SettingsFileName))
	} else {
		fmt.Fprintln(out, "Hooks are already installed.")
	}
	return nil
}

type HooksUninstallCmd struct {
	HooksDirFlag `embed:""`
}

func (c *HooksUninstallCmd) Run() error {
	return c.run(os.Stdout)
}

func (c *HooksUninstallCmd) run(out io.Writer) error {
	dir, err := c.dir()
	if err != nil {
		return err
	}
	removed, err := hooks.Uninstall(dir)
	if err != nil {
		return fmt.Errorf("removing hooks: %w", err)
	}
	if removed {
		fmt.Fprintln(out, "Hooks removed.")
	} else {
		fmt.Fprintln(out, "No ccbeacon hooks found.")
	}
	return nil
}

type HooksStatusCmd struct {
	HooksDirFlag `embed:""`
}

func (c *HooksStatusCmd) Run() error {
	return c.run(os.Stdout)
}

func (c *HooksStatusCmd) run(out io.Writer) error {
	dir, err := c.dir()
	if err != nil {
		return err
	}
	if hooks.Installed(dir) {
		fmt.Fprintln(out, "Status: INSTALLED")
		fmt.Fprintf(out, "Config: %s\n", filepath.Join(dir, hooks.SettingsFileName))
	} else {
		fmt.Fprintln(out, "Status: NOT INSTALLED")
		fmt.Fprintln(out, "Run 'ccbeacon hooks install' to install.")
	}

	wrapped, err := hooks.Wrapped(dir)
	if err != nil {
		return nil
	}
	if len(wrapped) > 0 {
		fmt.Fprintln(out, "Warning: these hooks run emit inside a compound shell command, so the")
		fmt.Fprintln(out, "reported pid is the shell and the session is dropped when it exits.")
		fmt.Fprintln(out, "Add --pid 0, or make emit the last command of the hook:")
		for _, cmd := range wrapped {
			fmt.Fprintf(out, "  %s\n", cmd)
		}
	}
	return nil
}
