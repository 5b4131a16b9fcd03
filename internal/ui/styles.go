package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorAccent = lipgloss.Color("#7aa2f7")
	ColorRed    = lipgloss.Color("#f7768e")
	ColorGreen  = lipgloss.Color("#9ece6a")
	ColorDim    = lipgloss.Color("#565f89")
	ColorText   = lipgloss.Color("#c0caf5")
	ColorBg     = lipgloss.Color("#1a1b26")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			Padding(0, 1)

	NeedsInputStyle = lipgloss.NewStyle().Foreground(ColorRed)
	WorkingStyle    = lipgloss.NewStyle().Foreground(ColorGreen)
	DimStyle        = lipgloss.NewStyle().Foreground(ColorDim)

	SelectedStyle = lipgloss.NewStyle().
			Background(ColorAccent).
			Foreground(ColorBg)

	ItemStyle = lipgloss.NewStyle().Padding(0, 1)

	SearchBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Padding(0, 1)

	HelpStyle   = lipgloss.NewStyle().Foreground(ColorDim).Padding(0, 1)
	StatusStyle = lipgloss.NewStyle().Foreground(ColorText).Padding(0, 1)
	ErrorStyle  = lipgloss.NewStyle().Foreground(ColorRed).Padding(0, 1)
)
