// ABOUTME: Bubble Tea message types used in the dashboard message loop.
// ABOUTME: Each type wraps a domain value for the tea.Msg interface.
package tui

import (
	"time"

	"github.com/2389-research/greenroom/events"
)

// EventMsg wraps a lifecycle event for the Bubble Tea message loop.
type EventMsg struct {
	Event events.Event
}

// TickMsg drives the periodic registry refresh.
type TickMsg struct {
	Time time.Time
}
