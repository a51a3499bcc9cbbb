// ABOUTME: Top-level Bubble Tea dashboard: running previews table over a live event feed.
// ABOUTME: Polls the supervisor registry on a tick; events arrive through the EventBridge.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/greenroom/supervisor"
)

const refreshInterval = 500 * time.Millisecond

// AppLister is the registry surface the dashboard polls.
type AppLister interface {
	ListRunning() []supervisor.AppInfo
}

// DashboardModel is the top-level Bubble Tea model.
type DashboardModel struct {
	lister AppLister

	apps     []supervisor.AppInfo
	eventLog EventLogModel

	width  int
	height int
}

// NewDashboardModel creates a dashboard polling lister for running apps.
func NewDashboardModel(lister AppLister) DashboardModel {
	return DashboardModel{
		lister:   lister,
		eventLog: NewEventLogModel(200),
	}
}

// Init implements tea.Model.
func (m DashboardModel) Init() tea.Cmd {
	return TickCmd(refreshInterval)
}

// Update implements tea.Model.
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logHeight := m.height / 2
		m.eventLog.SetSize(m.width, logHeight)
		return m, nil

	case TickMsg:
		if m.lister != nil {
			m.apps = m.lister.ListRunning()
		}
		return m, TickCmd(refreshInterval)

	case EventMsg:
		m.eventLog.Append(msg.Event)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m DashboardModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.renderApps())
	b.WriteString("\n")
	b.WriteString(m.eventLog.View())
	b.WriteString("\n")
	b.WriteString(StatusBarStyle.Width(m.width).Render(
		fmt.Sprintf("%d preview(s) running  •  q to quit", len(m.apps))))
	return b.String()
}

// renderApps renders the running previews table.
func (m DashboardModel) renderApps() string {
	var rows []string
	rows = append(rows, TitleStyle.Render("Previews"))
	rows = append(rows, HeaderStyle.Render(fmt.Sprintf("%-4s %-24s %-10s %-6s %s", "SEQ", "APP", "KIND", "PORT", "URL")))

	if len(m.apps) == 0 {
		rows = append(rows, DimStyle.Render("  (none running)"))
	}
	for _, app := range m.apps {
		rows = append(rows, fmt.Sprintf("%-4d %-24s %-10s %-6d %s",
			app.Seq,
			truncate(app.AppID, 24),
			app.Kind,
			app.Port,
			URLStyle.Render(app.FrontDoorURL)))
	}
	return BorderStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
