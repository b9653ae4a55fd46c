package progress

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	ledgerdto "mindmosaic/internal/modules/ledger/dto"
	"mindmosaic/internal/ui/theme"
)

const historyLimit = 20

type Port interface {
	CurrentSnapshot(ctx context.Context) (ledgerdto.SnapshotOutput, error)
	History(ctx context.Context, limit int) ([]ledgerdto.LogEntryOutput, error)
}

type LoadedMsg struct {
	Snapshot ledgerdto.SnapshotOutput
	History  []ledgerdto.LogEntryOutput
	Err      error
}

type Model struct {
	port     Port
	snapshot ledgerdto.SnapshotOutput
	table    table.Model
	err      error
	width    int
	height   int
}

func New(port Port) Model {
	t := table.New(
		table.WithColumns(columns(60)),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(theme.Sapphire).Bold(true)
	styles.Selected = styles.Selected.Foreground(theme.Base).Background(theme.Lavender)
	t.SetStyles(styles)
	return Model{port: port, table: t}
}

func columns(width int) []table.Column {
	title := width - 36
	if title < 16 {
		title = 16
	}
	return []table.Column{
		{Title: "Completed", Width: 16},
		{Title: "Activity", Width: title},
		{Title: "Mood", Width: 10},
		{Title: "Pts", Width: 5},
	}
}

func (m Model) Init() tea.Cmd {
	return m.Refresh()
}

// Refresh reloads the snapshot and the recent history.
func (m Model) Refresh() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		snapshot, err := m.port.CurrentSnapshot(ctx)
		if err != nil {
			return LoadedMsg{Err: err}
		}
		history, err := m.port.History(ctx, historyLimit)
		return LoadedMsg{Snapshot: snapshot, History: history, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(m.width - 4))
		m.table.SetHeight(max(m.height-10, 3))
		return m, nil
	case LoadedMsg:
		m.err = msg.Err
		if msg.Err != nil {
			return m, nil
		}
		m.snapshot = msg.Snapshot
		rows := make([]table.Row, 0, len(msg.History))
		for _, e := range msg.History {
			rows = append(rows, table.Row{
				e.CompletedAt.Local().Format("2006-01-02 15:04"),
				e.Title,
				e.Mood,
				fmt.Sprintf("%d", e.Points),
			})
		}
		m.table.SetRows(rows)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "r" {
			return m, m.Refresh()
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var sb strings.Builder
	if m.err != nil {
		sb.WriteString(theme.Warn.Render("progress unavailable: "+m.err.Error()) + "\n\n")
	}
	s := m.snapshot
	stats := lipgloss.JoinHorizontal(lipgloss.Top,
		stat("Points", fmt.Sprintf("%d", s.Points)),
		stat("Streak", fmt.Sprintf("%d day(s)", s.Streak)),
		stat("Last day", fallback(s.LastCompletedDate, "never")),
	)
	sb.WriteString(stats + "\n")
	if last := s.LastActivityCompleted; last != nil {
		sb.WriteString(theme.Muted.Render("last: ") +
			fmt.Sprintf("%s (+%d) at %s", last.Title, last.Points, last.CompletedAt.Local().Format("15:04")) + "\n")
	}
	sb.WriteString("\n" + m.table.View() + "\n")
	sb.WriteString(theme.Muted.Render("r: refresh"))
	return sb.String()
}

func stat(label, value string) string {
	return theme.Pane.Width(22).Render(theme.Muted.Render(label) + "\n" + theme.Title.Render(value))
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
