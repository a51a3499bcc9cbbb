// ABOUTME: Scrollable lifecycle event feed built on the bubbles viewport component.
// ABOUTME: Color-codes entries by event type and evicts the oldest past capacity.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"

	"github.com/2389-research/greenroom/events"
)

// EventLogModel is a bounded, scrollable feed of lifecycle events.
type EventLogModel struct {
	entries  []events.Event
	max      int
	viewport viewport.Model
	width    int
	height   int
}

// NewEventLogModel creates a feed holding at most maxEntries events.
func NewEventLogModel(maxEntries int) EventLogModel {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return EventLogModel{
		entries:  make([]events.Event, 0, maxEntries),
		max:      maxEntries,
		viewport: viewport.New(80, 10),
	}
}

// Append adds an event, evicting the oldest entry at capacity.
func (m *EventLogModel) Append(e events.Event) {
	if len(m.entries) >= m.max {
		m.entries = m.entries[1:]
	}
	m.entries = append(m.entries, e)
	m.syncViewport()
}

// Len returns the number of entries in the feed.
func (m EventLogModel) Len() int {
	return len(m.entries)
}

// SetSize sets available dimensions, reserving room for border and title.
func (m *EventLogModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	vpWidth := w - 2
	vpHeight := h - 3
	if vpWidth < 1 {
		vpWidth = 1
	}
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.syncViewport()
}

func (m *EventLogModel) syncViewport() {
	var b strings.Builder
	for _, e := range m.entries {
		line := fmt.Sprintf("%s %s %s",
			DimStyle.Render(e.Time.Format("15:04:05")),
			StyleForEvent(e.Type).Render(e.Type),
			e.Key)
		if e.Detail != "" {
			line += " " + DimStyle.Render(e.Detail)
		}
		b.WriteString(line + "\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// View renders the feed inside its border with a title line.
func (m EventLogModel) View() string {
	title := TitleStyle.Render("Events")
	body := m.viewport.View()
	return BorderStyle.Width(m.width - 2).Render(title + "\n" + body)
}
