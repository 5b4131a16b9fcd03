package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/ccbeacon/ccbeacon/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const description = "Track which coding-assistant sessions are working and which are waiting for you."

// CLI is the command tree.
type CLI struct {
	Version    kong.VersionFlag `help:"Show version information"`
	ConfigFile string           `name:"config" help:"Path to config.toml (default: ~/.ccbeacon/config.toml)" type:"path" env:"CCBEACON_CONFIG"`

	Serve       ServeCmd   `cmd:"" default:"withargs" help:"Run the session daemon (default)"`
	Emit        EmitCmd    `cmd:"" help:"Send one hook event to the daemon; reads the hook payload from stdin"`
	Hooks       HooksCmd   `cmd:"" help:"Manage the assistant hook entries in settings.json"`
	VersionInfo VersionCmd `cmd:"version" name:"version" help:"Print the version"`
}

// configPath resolves --config, falling back to the per-user location.
func (c *CLI) configPath() string {
	if c.ConfigFile != "" {
		return c.ConfigFile
	}
	path, err := config.Path()
	if err != nil {
		return ""
	}
	return path
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (v *VersionCmd) Run() error {
	fmt.Printf("ccbeacon %s\n", version)
	return nil
}

func main() {
	initColorProfile()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("ccbeacon"),
		kong.Description(description),
		kong.Vars{"version": version},
		kong.UsageOnError(),
		kong.Bind(&cli),
	)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initColorProfile picks the lipgloss color profile. CCBEACON_COLOR accepts
// truecolor, 256, 16 or none; otherwise the terminal is probed.
func initColorProfile() {
	switch strings.ToLower(os.Getenv("CCBEACON_COLOR")) {
	case "truecolor", "true", "24bit":
		lipgloss.SetColorProfile(termenv.TrueColor)
	case "256", "ansi256":
		lipgloss.SetColorProfile(termenv.ANSI256)
	case "16", "ansi", "basic":
		lipgloss.SetColorProfile(termenv.ANSI)
	case "none", "off", "ascii":
		lipgloss.SetColorProfile(termenv.Ascii)
	default:
		if ct := os.Getenv("COLORTERM"); ct == "truecolor" || ct == "24bit" {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	}
}
