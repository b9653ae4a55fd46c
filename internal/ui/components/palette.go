package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mindmosaic/internal/ui/theme"
)

const maxSuggestions = 6

// Command is one palette entry. Args is a usage string such as "<tag>".
type Command struct {
	Name string
	Args string
	Help string
}

func (c Command) usage() string {
	if c.Args == "" {
		return c.Name
	}
	return c.Name + " " + c.Args
}

// PaletteSubmitMsg carries the confirmed command line.
type PaletteSubmitMsg struct{ Input string }

type PaletteCancelMsg struct{}

var (
	paletteFrame = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Teal).
			Background(theme.Mantle).
			Foreground(theme.Text).
			Padding(0, 1)
	suggestionStyle = lipgloss.NewStyle().Foreground(theme.Subtext0)
	highlightStyle  = lipgloss.NewStyle().Foreground(theme.Base).Background(theme.Teal)
)

// Palette is the ":" command line. Typing filters the known commands by
// name, tab completes the highlighted one and enter submits the line.
type Palette struct {
	input    textinput.Model
	commands []Command
	cursor   int
	visible  bool
	width    int
}

func NewPalette(commands []Command) Palette {
	ti := textinput.New()
	ti.Prompt = ": "
	ti.Placeholder = "mood anxious, activity:start…"
	ti.CharLimit = 128
	return Palette{input: ti, commands: commands}
}

func (p Palette) Visible() bool { return p.visible }

// Open clears the line and returns the cursor blink command.
func (p *Palette) Open() tea.Cmd {
	p.visible = true
	p.cursor = 0
	p.input.SetValue("")
	return p.input.Focus()
}

func (p *Palette) SetWidth(w int) { p.width = w }

func (p Palette) Update(msg tea.Msg) (Palette, tea.Cmd) {
	if !p.visible {
		return p, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			p.close()
			return p, func() tea.Msg { return PaletteCancelMsg{} }
		case "enter":
			line := strings.TrimSpace(p.input.Value())
			p.close()
			return p, func() tea.Msg { return PaletteSubmitMsg{Input: line} }
		case "tab":
			p.complete()
			return p, nil
		case "up", "ctrl+p":
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil
		case "down", "ctrl+n":
			if p.cursor < len(p.Matching(p.input.Value(), maxSuggestions))-1 {
				p.cursor++
			}
			return p, nil
		}
	}
	before := p.input.Value()
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	if p.input.Value() != before {
		p.cursor = 0
	}
	return p, cmd
}

func (p *Palette) close() {
	p.visible = false
	p.input.Blur()
}

// complete replaces the command word with the highlighted suggestion and
// leaves room for its arguments.
func (p *Palette) complete() {
	matches := p.Matching(p.input.Value(), maxSuggestions)
	if p.cursor >= len(matches) {
		return
	}
	c := matches[p.cursor]
	line := c.Name
	if c.Args != "" {
		line += " "
	}
	p.input.SetValue(line)
	p.input.CursorEnd()
	p.cursor = 0
}

func (p Palette) View() string {
	if !p.visible {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Run a command") + "\n")
	sb.WriteString(p.input.View() + "\n")
	matches := p.Matching(p.input.Value(), maxSuggestions)
	if len(matches) > 0 {
		sb.WriteString("\n")
	}
	for i, c := range matches {
		row := c.usage()
		if c.Help != "" {
			row += "  " + c.Help
		}
		if i == p.cursor {
			sb.WriteString(highlightStyle.Render(" "+row+" ") + "\n")
			continue
		}
		sb.WriteString(suggestionStyle.Render(" "+row) + "\n")
	}
	sb.WriteString("\n" + theme.Muted.Render("tab complete  ↑/↓ choose  enter run  esc close"))

	w := p.width
	if w < 24 {
		w = 64
	}
	return paletteFrame.Width(w - 2).Render(sb.String())
}

// Matching returns up to limit commands whose name starts with the first
// word of input. Arguments after the first word are ignored.
func (p Palette) Matching(input string, limit int) []Command {
	word, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(input)), " ")
	var out []Command
	for _, c := range p.commands {
		if !strings.HasPrefix(c.Name, word) {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}
