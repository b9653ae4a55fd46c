package activities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	activitydto "mindmosaic/internal/modules/activity/dto"
	"mindmosaic/internal/ui/theme"
)

// ─── port ────────────────────────────────────────────────────────────────────

type Port interface {
	Moods(ctx context.Context) ([]activitydto.MoodOutput, error)
	Activities(ctx context.Context, mood string) ([]activitydto.ActivityOutput, error)
	Select(ctx context.Context, activityID string) (activitydto.SessionOutput, error)
	CancelSelection(ctx context.Context) (activitydto.SessionOutput, error)
	Start(ctx context.Context) (activitydto.SessionOutput, error)
	Tick(ctx context.Context) (activitydto.SessionOutput, error)
	Stop(ctx context.Context) (activitydto.SessionOutput, error)
	OnSurfaceDismissed(ctx context.Context) (activitydto.SessionOutput, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

type MoodsLoadedMsg struct {
	Moods []activitydto.MoodOutput
	Err   error
}

type ActivitiesLoadedMsg struct {
	Mood       string
	Activities []activitydto.ActivityOutput
	Err        error
}

// SessionMsg carries the controller state after an operation. A non-empty
// Out.Outcome means the attempt just ended.
type SessionMsg struct {
	Op  string
	Out activitydto.SessionOutput
	Err error
}

type tickMsg struct{ sessionID string }

// ─── list items ──────────────────────────────────────────────────────────────

type moodItem struct{ mood activitydto.MoodOutput }

func (i moodItem) Title() string       { return i.mood.Tag }
func (i moodItem) Description() string { return fmt.Sprintf("%d activities", i.mood.Activities) }
func (i moodItem) FilterValue() string { return i.mood.Tag }

type activityItem struct{ activity activitydto.ActivityOutput }

func (i activityItem) Title() string { return i.activity.Title }
func (i activityItem) Description() string {
	return fmt.Sprintf("%d pts  %s", i.activity.PointValue, activitydto.FormatRemaining(i.activity.DurationSeconds))
}
func (i activityItem) FilterValue() string { return i.activity.Title }

// ─── model ───────────────────────────────────────────────────────────────────

type level int

const (
	levelMoods level = iota
	levelActivities
)

type Model struct {
	port     Port
	interval time.Duration
	moods    list.Model
	acts     list.Model
	spinner  spinner.Model
	level    level
	mood     string
	session  activitydto.SessionOutput
	notice   string
	loading  bool
	width    int
	height   int
}

func New(port Port, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	return Model{
		port:     port,
		interval: interval,
		moods:    newList("How are you feeling?"),
		acts:     newList("Activities"),
		spinner:  sp,
		session:  activitydto.SessionOutput{State: "idle"},
		loading:  true,
	}
}

func newList(title string) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)
	l := list.New(nil, delegate, 0, 0)
	l.Title = title
	l.Styles.Title = theme.Title
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)
	return l
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadMoodsCmd(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case MoodsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.notice = "catalog: " + msg.Err.Error()
			return m, nil
		}
		items := make([]list.Item, len(msg.Moods))
		for i, mood := range msg.Moods {
			items[i] = moodItem{mood: mood}
		}
		cmds = append(cmds, m.moods.SetItems(items))

	case ActivitiesLoadedMsg:
		if msg.Err != nil {
			m.notice = "catalog: " + msg.Err.Error()
			return m, nil
		}
		items := make([]list.Item, len(msg.Activities))
		for i, a := range msg.Activities {
			items[i] = activityItem{activity: a}
		}
		m.mood = msg.Mood
		m.acts.Title = "Activities for " + msg.Mood
		m.acts.ResetSelected()
		m.level = levelActivities
		cmds = append(cmds, m.acts.SetItems(items))

	case SessionMsg:
		if msg.Err != nil {
			m.notice = msg.Op + ": " + msg.Err.Error()
		} else {
			m.notice = ""
		}
		m.session = msg.Out
		switch msg.Out.Outcome {
		case activitydto.OutcomeCompleted:
			m.notice = fmt.Sprintf("Congratulations! You earned %d points.", msg.Out.Awarded)
		case activitydto.OutcomeAborted:
			m.notice = "Stopped early. Complete the full duration to earn points."
		}
		if msg.Err == nil && msg.Op == "start" && msg.Out.State == "running" {
			cmds = append(cmds, m.scheduleTick(msg.Out.SessionID))
		}
		if msg.Op == "tick" && msg.Out.State == "running" {
			cmds = append(cmds, m.scheduleTick(msg.Out.SessionID))
		}

	case tickMsg:
		if m.session.State == "running" && m.session.SessionID == msg.sessionID {
			cmds = append(cmds, m.sessionCmd("tick", m.port.Tick))
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.Filtering() {
			break
		}
		switch msg.String() {
		case "enter":
			if m.level == levelMoods {
				if item, ok := m.moods.SelectedItem().(moodItem); ok {
					return m, m.loadActivitiesCmd(item.mood.Tag)
				}
				return m, nil
			}
			if item, ok := m.acts.SelectedItem().(activityItem); ok && m.session.State != "running" {
				return m, m.SelectActivity(item.activity.ID)
			}
			return m, nil
		case "s":
			if m.session.State == "selected" {
				return m, m.StartSession()
			}
			return m, nil
		case "x":
			if m.session.State == "running" {
				return m, m.StopSession()
			}
			return m, nil
		case "esc":
			return m.back()
		}
	}

	if !m.loading {
		var cmd tea.Cmd
		if m.level == levelMoods {
			m.moods, cmd = m.moods.Update(msg)
		} else {
			m.acts, cmd = m.acts.Update(msg)
		}
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// back closes the innermost surface: a running session is dismissed, a
// selection is cancelled, otherwise the mood list is shown again.
func (m Model) back() (Model, tea.Cmd) {
	switch m.session.State {
	case "running":
		return m, m.Dismiss()
	case "selected":
		return m, m.CancelSelection()
	}
	if m.level == levelActivities {
		m.level = levelMoods
	}
	return m, nil
}

// Dismiss routes the surface going away through the controller.
func (m Model) Dismiss() tea.Cmd {
	return m.sessionCmd("dismiss", m.port.OnSurfaceDismissed)
}

// OpenMood shows the activities of tag.
func (m Model) OpenMood(tag string) tea.Cmd {
	return m.loadActivitiesCmd(tag)
}

func (m Model) SelectActivity(id string) tea.Cmd {
	return m.sessionCmd("select", func(ctx context.Context) (activitydto.SessionOutput, error) {
		return m.port.Select(ctx, id)
	})
}

func (m Model) StartSession() tea.Cmd {
	return m.sessionCmd("start", m.port.Start)
}

func (m Model) StopSession() tea.Cmd {
	return m.sessionCmd("stop", m.port.Stop)
}

func (m Model) CancelSelection() tea.Cmd {
	return m.sessionCmd("cancel", m.port.CancelSelection)
}

// Running reports whether a countdown is in progress.
func (m Model) Running() bool {
	return m.session.State == "running"
}

func (m Model) Filtering() bool {
	if m.level == levelMoods {
		return m.moods.FilterState() == list.Filtering
	}
	return m.acts.FilterState() == list.Filtering
}

func (m Model) View() string {
	if m.loading {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading activities…")
	}
	listW := m.width * 4 / 10
	detailW := m.width - listW

	current := m.moods.View()
	if m.level == levelActivities {
		current = m.acts.View()
	}
	listPane := lipgloss.NewStyle().Width(listW).Height(m.height).Render(current)
	detailPane := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Surface1).
		Background(theme.Mantle).
		Padding(1).
		Width(detailW - 2).
		Height(m.height - 2).
		Render(m.renderDetail())
	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

// ─── private ─────────────────────────────────────────────────────────────────

func (m *Model) resize() {
	listW := m.width * 4 / 10
	m.moods.SetSize(listW, m.height)
	m.acts.SetSize(listW, m.height)
}

func (m Model) renderDetail() string {
	var sb strings.Builder
	a := m.session.Activity
	if a == nil {
		if item, ok := m.acts.SelectedItem().(activityItem); ok && m.level == levelActivities {
			a = &item.activity
		}
	}
	if a == nil {
		sb.WriteString(theme.Muted.Render("Pick a mood, then an activity.\n\nenter: open  esc: back"))
	} else {
		sb.WriteString(theme.Title.Render(a.Title) + "\n\n")
		if a.Description != "" {
			sb.WriteString(a.Description + "\n\n")
		}
		sb.WriteString(theme.Muted.Render("points:   ") + fmt.Sprintf("%d", a.PointValue) + "\n")
		sb.WriteString(theme.Muted.Render("duration: ") + activitydto.FormatRemaining(a.DurationSeconds) + "\n\n")
		switch m.session.State {
		case "running":
			sb.WriteString(theme.Hot.Render("● "+activitydto.FormatRemaining(m.session.RemainingSeconds)+" remaining") + "\n\n")
			sb.WriteString(theme.Muted.Render("x: stop  esc: leave (no points)"))
		case "selected":
			sb.WriteString(theme.Muted.Render("s: start  esc: close"))
		default:
			sb.WriteString(theme.Muted.Render("enter: select"))
		}
	}
	if m.notice != "" {
		sb.WriteString("\n\n" + theme.Notice.Render(m.notice))
	}
	return sb.String()
}

func (m Model) scheduleTick(sessionID string) tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return tickMsg{sessionID: sessionID}
	})
}

func (m Model) sessionCmd(op string, fn func(context.Context) (activitydto.SessionOutput, error)) tea.Cmd {
	return func() tea.Msg {
		out, err := fn(context.Background())
		return SessionMsg{Op: op, Out: out, Err: err}
	}
}

func (m Model) loadMoodsCmd() tea.Cmd {
	return func() tea.Msg {
		moods, err := m.port.Moods(context.Background())
		return MoodsLoadedMsg{Moods: moods, Err: err}
	}
}

func (m Model) loadActivitiesCmd(mood string) tea.Cmd {
	return func() tea.Msg {
		acts, err := m.port.Activities(context.Background(), mood)
		return ActivitiesLoadedMsg{Mood: mood, Activities: acts, Err: err}
	}
}
