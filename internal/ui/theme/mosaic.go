package theme

import "github.com/charmbracelet/lipgloss"

// Catppuccin Frappé.
var (
	Base     = lipgloss.Color("#303446")
	Mantle   = lipgloss.Color("#292c3c")
	Surface1 = lipgloss.Color("#51576d")
	Text     = lipgloss.Color("#c6d0f5")
	Subtext0 = lipgloss.Color("#a5adce")
	Lavender = lipgloss.Color("#babbf1")
	Sapphire = lipgloss.Color("#85c1dc")
	Teal     = lipgloss.Color("#81c8be")
	Green    = lipgloss.Color("#a6d189")
	Peach    = lipgloss.Color("#ef9f76")
	Red      = lipgloss.Color("#e78284")

	Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Background(Mantle).
		Foreground(Text).
		Padding(0, 1)

	Title  = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted  = lipgloss.NewStyle().Foreground(Subtext0)
	Hot    = lipgloss.NewStyle().Foreground(Peach).Bold(true)
	Notice = lipgloss.NewStyle().Foreground(Green)
	Warn   = lipgloss.NewStyle().Foreground(Red)
)
