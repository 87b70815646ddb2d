// Package tui is a terminal browser for campaigns and their task graphs.
// It follows The Elm Architecture from bubbletea: the Model holds all state,
// Update reacts to messages, View renders a string.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
)

type screen int

const (
	screenCampaigns screen = iota
	screenTasks
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	baseStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1)
)

type campaignsLoadedMsg struct {
	campaigns []domain.Campaign
	progress  map[string]domain.Progress
}

type tasksLoadedMsg struct {
	campaign domain.Campaign
	tasks    []domain.Task
}

type loadFailedMsg struct{ err error }

// Model is the browser state.
type Model struct {
	engine engine.Engine

	screen    screen
	campaigns table.Model
	tasks     table.Model

	campaignRows []domain.Campaign
	taskRows     []domain.Task
	current      domain.Campaign
	err          error
}

func New(e engine.Engine) Model {
	campaigns := table.New(
		table.WithColumns([]table.Column{
			{Title: "Name", Width: 28},
			{Title: "Priority", Width: 8},
			{Title: "Status", Width: 10},
			{Title: "Progress", Width: 9},
			{Title: "Tasks", Width: 6},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	tasks := table.New(
		table.WithColumns([]table.Column{
			{Title: "Title", Width: 34},
			{Title: "Priority", Width: 8},
			{Title: "Status", Width: 11},
			{Title: "Deps", Width: 5},
		}),
		table.WithFocused(true),
		table.WithHeight(14),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	campaigns.SetStyles(styles)
	tasks.SetStyles(styles)
	return Model{engine: e, screen: screenCampaigns, campaigns: campaigns, tasks: tasks}
}

func (m Model) Init() tea.Cmd {
	return m.loadCampaigns()
}

func (m Model) loadCampaigns() tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		ctx := context.Background()
		cs, err := e.ListCampaigns(ctx, "")
		if err != nil {
			return loadFailedMsg{err}
		}
		progress := make(map[string]domain.Progress, len(cs))
		for _, c := range cs {
			p, err := e.ProgressSummary(ctx, c.ID)
			if err != nil {
				return loadFailedMsg{err}
			}
			progress[c.ID] = p
		}
		return campaignsLoadedMsg{campaigns: cs, progress: progress}
	}
}

func (m Model) loadTasks(c domain.Campaign) tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		ts, err := e.Repo.ListCampaignTasks(context.Background(), c.ID)
		if err != nil {
			return loadFailedMsg{err}
		}
		return tasksLoadedMsg{campaign: c, tasks: ts}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case campaignsLoadedMsg:
		m.err = nil
		m.campaignRows = msg.campaigns
		rows := make([]table.Row, 0, len(msg.campaigns))
		for _, c := range msg.campaigns {
			p := msg.progress[c.ID]
			rows = append(rows, table.Row{
				c.Name,
				c.Priority,
				c.Status,
				fmt.Sprintf("%d%%", p.PercentComplete),
				fmt.Sprintf("%d", p.Total),
			})
		}
		m.campaigns.SetRows(rows)
		return m, nil

	case tasksLoadedMsg:
		m.err = nil
		sameCampaign := m.current.ID == msg.campaign.ID
		m.current = msg.campaign
		m.taskRows = msg.tasks
		rows := make([]table.Row, 0, len(msg.tasks))
		for _, t := range msg.tasks {
			rows = append(rows, table.Row{
				t.Title,
				t.Priority,
				t.Status,
				fmt.Sprintf("%d", len(t.DependsOn)),
			})
		}
		m.tasks.SetRows(rows)
		if !sameCampaign {
			m.tasks.SetCursor(0)
		}
		m.screen = screenTasks
		return m, nil

	case loadFailedMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.screen == screenCampaigns {
				return m, m.loadCampaigns()
			}
			return m, m.loadTasks(m.current)
		case "enter":
			if m.screen == screenCampaigns {
				i := m.campaigns.Cursor()
				if i >= 0 && i < len(m.campaignRows) {
					return m, m.loadTasks(m.campaignRows[i])
				}
			}
			return m, nil
		case "esc":
			if m.screen == screenTasks {
				m.screen = screenCampaigns
				return m, m.loadCampaigns()
			}
			return m, nil
		case "s":
			return m.setTaskStatus(domain.TaskInProgress)
		case "d":
			return m.setTaskStatus(domain.TaskDone)
		case "x":
			return m.setTaskStatus(domain.TaskCancelled)
		}
	}

	var cmd tea.Cmd
	if m.screen == screenCampaigns {
		m.campaigns, cmd = m.campaigns.Update(msg)
	} else {
		m.tasks, cmd = m.tasks.Update(msg)
	}
	return m, cmd
}

// setTaskStatus moves the selected task through the engine, so transition
// rules and the criteria gate apply the same as everywhere else. Failures
// land in the error line instead of changing anything.
func (m Model) setTaskStatus(status string) (tea.Model, tea.Cmd) {
	if m.screen != screenTasks {
		return m, nil
	}
	i := m.tasks.Cursor()
	if i < 0 || i >= len(m.taskRows) {
		return m, nil
	}
	id := m.taskRows[i].ID
	e := m.engine
	campaign := m.current
	return m, func() tea.Msg {
		ctx := context.Background()
		_, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{ID: id, Status: &status, ActorID: "tui"})
		if err != nil {
			return loadFailedMsg{err}
		}
		ts, err := e.Repo.ListCampaignTasks(ctx, campaign.ID)
		if err != nil {
			return loadFailedMsg{err}
		}
		return tasksLoadedMsg{campaign: campaign, tasks: ts}
	}
}

func (m Model) View() string {
	var b strings.Builder
	switch m.screen {
	case screenCampaigns:
		b.WriteString(titleStyle.Render("Campaigns"))
		b.WriteString("\n")
		b.WriteString(baseStyle.Render(m.campaigns.View()))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: tasks  r: refresh  q: quit"))
	case screenTasks:
		b.WriteString(titleStyle.Render("Tasks · " + m.current.Name))
		b.WriteString("\n")
		b.WriteString(baseStyle.Render(m.tasks.View()))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("s: start  d: done  x: cancel  esc: back  r: refresh  q: quit"))
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
	}
	return b.String()
}

// Run starts the browser and blocks until the user quits.
func Run(e engine.Engine) error {
	_, err := tea.NewProgram(New(e), tea.WithAltScreen()).Run()
	return err
}
