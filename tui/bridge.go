// ABOUTME: Bridge connecting supervisor/proxy lifecycle events to the Bubble Tea loop.
// ABOUTME: Wraps a tea.Program's Send so publishers never know about the TUI.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/greenroom/events"
)

// EventBridge injects lifecycle events into the Bubble Tea message loop.
type EventBridge struct {
	send func(msg tea.Msg)
}

// NewEventBridge creates a bridge around a send function, typically
// program.Send.
func NewEventBridge(send func(msg tea.Msg)) *EventBridge {
	return &EventBridge{send: send}
}

// HandleEvent satisfies events.Handler.
func (b *EventBridge) HandleEvent(e events.Event) {
	b.send(EventMsg{Event: e})
}

// TickCmd returns a command that fires a TickMsg after interval.
func TickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
