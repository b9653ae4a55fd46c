package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	activitydto "mindmosaic/internal/modules/activity/dto"
	ledgerdto "mindmosaic/internal/modules/ledger/dto"
	"mindmosaic/internal/ui/components"
	"mindmosaic/internal/ui/theme"
	activitiesview "mindmosaic/internal/ui/views/activities"
	progressview "mindmosaic/internal/ui/views/progress"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type activityPort interface {
	activitiesview.Port
	CurrentSnapshot(ctx context.Context) (ledgerdto.SnapshotOutput, error)
}

type historyPort interface {
	History(ctx context.Context, limit int) ([]ledgerdto.LogEntryOutput, error)
}

// ─── tab index ───────────────────────────────────────────────────────────────

type tabID int

const (
	tabActivities tabID = iota
	tabProgress
	tabCount
)

var tabLabels = [tabCount]string{"Activities", "Progress"}

// paletteCommands must stay in sync with executePalette.
var paletteCommands = []components.Command{
	{Name: "mood", Args: "<tag>", Help: "open a mood"},
	{Name: "activity:select", Args: "<id>", Help: "select an activity"},
	{Name: "activity:start", Help: "start the countdown"},
	{Name: "activity:stop", Help: "stop early, no points"},
	{Name: "activity:cancel", Help: "close the selection"},
	{Name: "progress:refresh", Help: "reload points and history"},
}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Tab     key.Binding
	Help    key.Binding
	Palette key.Binding
	Quit    key.Binding
	Enter   key.Binding
	Start   key.Binding
	Stop    key.Binding
	Back    key.Binding
	Refresh key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
		Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/select")),
		Start:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Stop:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back/leave")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh progress")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Help, k.Palette, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Enter, k.Back},
		{k.Start, k.Stop, k.Refresh},
		{k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model. It routes tabs and the palette and
// leaves session logic to the controller behind activityPort.
type Model struct {
	user string

	actView  activitiesview.Model
	progView progressview.Model

	activeTab tabID
	keys      keyMap
	help      help.Model
	showHelp  bool
	palette   components.Palette
	status    string
	width     int
	height    int
}

func NewModel(user string, activity activityPort, history historyPort, tick time.Duration) Model {
	return Model{
		user:      user,
		actView:   activitiesview.New(activity, tick),
		progView:  progressview.New(progressBridge{activity: activity, history: history}),
		activeTab: tabActivities,
		keys:      defaultKeys(),
		help:      help.New(),
		palette:   components.NewPalette(paletteCommands),
		status:    "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.actView.Init(), m.progView.Init())
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		if _, isKey := msg.(tea.KeyMsg); isKey {
			return m, cmd
		}
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.propagateSize()
		return m, nil

	case activitiesview.SessionMsg:
		m.status = sessionStatus(msg)
		var cmd tea.Cmd
		m.actView, cmd = m.actView.Update(msg)
		cmds = append(cmds, cmd)
		if msg.Out.Outcome != "" {
			cmds = append(cmds, m.progView.Refresh())
		}
		return m, tea.Batch(cmds...)

	case progressview.LoadedMsg:
		var cmd tea.Cmd
		m.progView, cmd = m.progView.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if m.activeTab == tabActivities && m.actView.Filtering() {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, m.quit()
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab + tabCount - 1) % tabCount
			return m, nil
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		case ":":
			cmd := m.palette.Open()
			return m, cmd
		}
	}

	var tabCmd tea.Cmd
	switch m.activeTab {
	case tabActivities:
		m.actView, tabCmd = m.actView.Update(msg)
	case tabProgress:
		m.progView, tabCmd = m.progView.Update(msg)
	}
	// Countdown ticks must reach the activities view from any tab.
	if m.activeTab != tabActivities {
		if _, ok := msg.(tea.KeyMsg); !ok {
			var cmd tea.Cmd
			m.actView, cmd = m.actView.Update(msg)
			cmds = append(cmds, cmd)
		}
	}
	cmds = append(cmds, tabCmd)
	return m, tea.Batch(cmds...)
}

// quit dismisses a running session before leaving so it is recorded as an
// abort rather than silently dropped.
func (m Model) quit() tea.Cmd {
	if m.actView.Running() {
		return tea.Sequence(m.actView.Dismiss(), tea.Quit)
	}
	return tea.Quit
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()
	contentH := max(m.height-lipgloss.Height(tabBar)-lipgloss.Height(statusBar), 1)

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH, lipgloss.Center, lipgloss.Center, m.palette.View())
	case m.activeTab == tabProgress:
		content = m.progView.View()
	default:
		content = m.actView.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)
}

func (m Model) renderTabBar() string {
	parts := make([]string, tabCount)
	for i := tabID(0); i < tabCount; i++ {
		if i == m.activeTab {
			parts[i] = theme.Hot.Render(" " + tabLabels[i] + " ")
		} else {
			parts[i] = theme.Muted.Render(" " + tabLabels[i] + " ")
		}
	}
	bar := "mindmosaic  " + strings.Join(parts, theme.Muted.Render(" │ "))
	if m.user != "" {
		bar += "  " + theme.Muted.Render("@"+m.user)
	}
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := m.status
	if m.actView.Running() {
		left = theme.Hot.Render("● running") + "  " + left
	}
	right := theme.Muted.Render("?:help  tab:switch  :::palette  q:quit")
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	switch parts[0] {
	case "mood":
		if len(parts) < 2 {
			m.status = "usage: mood <tag>"
			return m, nil
		}
		m.activeTab = tabActivities
		return m, m.actView.OpenMood(parts[1])
	case "activity:select":
		if len(parts) < 2 {
			m.status = "usage: activity:select <id>"
			return m, nil
		}
		m.activeTab = tabActivities
		return m, m.actView.SelectActivity(parts[1])
	case "activity:start":
		return m, m.actView.StartSession()
	case "activity:stop":
		return m, m.actView.StopSession()
	case "activity:cancel":
		return m, m.actView.CancelSelection()
	case "progress:refresh":
		m.activeTab = tabProgress
		return m, m.progView.Refresh()
	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (m *Model) propagateSize() {
	sz := tea.WindowSizeMsg{Width: m.width, Height: m.height - 3}
	m.actView, _ = m.actView.Update(sz)
	m.progView, _ = m.progView.Update(sz)
}

func sessionStatus(msg activitiesview.SessionMsg) string {
	if msg.Err != nil {
		return msg.Op + " failed: " + msg.Err.Error()
	}
	switch msg.Out.Outcome {
	case activitydto.OutcomeCompleted:
		return fmt.Sprintf("completed +%d points", msg.Out.Awarded)
	case activitydto.OutcomeAborted:
		return "stopped early, no points"
	}
	if msg.Out.Activity != nil {
		return msg.Out.State + ": " + msg.Out.Activity.Title
	}
	return msg.Out.State
}

// ─── port bridges ─────────────────────────────────────────────────────────────

type progressBridge struct {
	activity activityPort
	history  historyPort
}

func (b progressBridge) CurrentSnapshot(ctx context.Context) (ledgerdto.SnapshotOutput, error) {
	return b.activity.CurrentSnapshot(ctx)
}

func (b progressBridge) History(ctx context.Context, limit int) ([]ledgerdto.LogEntryOutput, error) {
	return b.history.History(ctx, limit)
}
