// ABOUTME: lipgloss styles for the dashboard panels and the event feed.
// ABOUTME: StyleForEvent maps lifecycle event types to their display colors.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/greenroom/events"
)

var (
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))

	DimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	RunningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	URLStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Underline(true)

	EventInfoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	EventGoodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	EventWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	EventErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// StyleForEvent returns the display style for a lifecycle event type.
func StyleForEvent(eventType string) lipgloss.Style {
	switch eventType {
	case events.TypeAppStarted, events.TypeProxyStarted:
		return EventGoodStyle
	case events.TypeAppHealed, events.TypeAppStopped, events.TypeProxyStopped:
		return EventWarnStyle
	case events.TypeAppBuildFailed, events.TypeAppExited:
		return EventErrorStyle
	default:
		return EventInfoStyle
	}
}
