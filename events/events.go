// ABOUTME: Shared lifecycle event types published by the supervisor and proxy manager.
// ABOUTME: Consumers (web SSE stream, TUI dashboard) receive these through a Handler func.
package events

import "time"

// Event types published over the lifecycle stream.
const (
	TypeAppStarting    = "app.starting"
	TypeAppBuildFailed = "app.build_failed"
	TypeAppHealed      = "app.healed"
	TypeAppStarted     = "app.started"
	TypeAppStopped     = "app.stopped"
	TypeAppExited      = "app.exited"
	TypeProxyStarted   = "proxy.started"
	TypeProxyStopped   = "proxy.stopped"
)

// Event is a single lifecycle notification. Key identifies the subject:
// an appID for app.* events, a proxy URL for proxy.* events.
type Event struct {
	Type   string    `json:"type"`
	Key    string    `json:"key"`
	Detail string    `json:"detail,omitempty"`
	Time   time.Time `json:"time"`
}

// Handler receives events synchronously from the publishing goroutine.
// Implementations must not block; fan-out buffering is the handler's job.
type Handler func(Event)

// New builds an event stamped with the current time.
func New(eventType, key, detail string) Event {
	return Event{Type: eventType, Key: key, Detail: detail, Time: time.Now()}
}
