// ABOUTME: Server-sent events stream of lifecycle events, fanned out through a Broker.
// ABOUTME: Slow subscribers drop events rather than block the publishing goroutine.
package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/2389-research/greenroom/events"
)

const subscriberBuffer = 64

// Broker fans lifecycle events out to any number of subscribers. Publish
// is safe from any goroutine and never blocks: a subscriber that cannot
// keep up loses events.
type Broker struct {
	mu   sync.Mutex
	subs map[chan events.Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[chan events.Event]struct{}{}}
}

// Publish satisfies events.Handler.
func (b *Broker) Publish(e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release it.
func (b *Broker) Subscribe() (<-chan events.Event, func()) {
	ch := make(chan events.Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return ch, cancel
}

// formatSSE renders one event in text/event-stream framing.
func formatSSE(e events.Event) string {
	data, err := json.Marshal(e)
	if err != nil {
		data = []byte(`{}`)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, data)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.Broker == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "event stream is disabled"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, cancel := s.Broker.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-ch:
			if _, err := fmt.Fprint(w, formatSSE(e)); err != nil {
				log.Printf("web sse write failed: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
