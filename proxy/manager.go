// ABOUTME: Reverse proxy manager: stable local URLs forwarding to arbitrary HTTP origins.
// ABOUTME: Instances are keyed by proxy URL; each worker signals readiness over a one-shot channel.
package proxy

import (
	"fmt"
	"log"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/2389-research/greenroom/events"
	"github.com/2389-research/greenroom/ports"
	"github.com/google/uuid"
)

// ValidationError reports a malformed target origin. Rejected before any
// worker is started.
type ValidationError struct {
	TargetOrigin string
	Reason       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid target origin %q: %s", e.TargetOrigin, e.Reason)
}

// Info is the externally visible state of one proxy instance.
type Info struct {
	ID           string    `json:"id"`
	ProxyURL     string    `json:"proxy_url"`
	TargetOrigin string    `json:"target_origin"`
	Port         int       `json:"port"`
	CreatedAt    time.Time `json:"created_at"`
}

// Manager owns the proxyURL-keyed registry of forwarding workers.
// Construct one per orchestrator; there are no package-level registries.
type Manager struct {
	events events.Handler

	mu      sync.Mutex
	proxies map[string]*instance
}

// NewManager builds an empty Manager. handler may be nil.
func NewManager(handler events.Handler) *Manager {
	return &Manager{events: handler, proxies: map[string]*instance{}}
}

// StartProxy validates targetOrigin, allocates a port, starts a forwarding
// worker, and returns once the worker's listener is bound. The returned
// proxy URL is the registry key for StopProxy.
func (m *Manager) StartProxy(targetOrigin string) (Info, error) {
	target, err := validateOrigin(targetOrigin)
	if err != nil {
		return Info{}, err
	}

	port, err := ports.Allocate()
	if err != nil {
		return Info{}, err
	}
	return m.startWorker(targetOrigin, target, port)
}

// startWorker registers an instance for port and brings its worker up.
// Registration happens before the worker runs so a worker that exits
// immediately finds its own entry to deregister; a bind failure removes
// the entry again before StartProxy returns.
func (m *Manager) startWorker(targetOrigin string, target *url.URL, port int) (Info, error) {
	inst := &instance{
		info: Info{
			ID:           uuid.NewString(),
			ProxyURL:     fmt.Sprintf("http://localhost:%d", port),
			TargetOrigin: targetOrigin,
			Port:         port,
			CreatedAt:    time.Now(),
		},
		target: target,
	}

	m.mu.Lock()
	m.proxies[inst.info.ProxyURL] = inst
	m.mu.Unlock()

	// The worker sends exactly one value: nil once the listener is bound,
	// or the bind error. No port polling.
	ready := make(chan error, 1)
	go inst.run(ready, m.deregister)
	if err := <-ready; err != nil {
		m.mu.Lock()
		if current, ok := m.proxies[inst.info.ProxyURL]; ok && current == inst {
			delete(m.proxies, inst.info.ProxyURL)
		}
		m.mu.Unlock()
		return Info{}, fmt.Errorf("proxy worker for %s: %w", targetOrigin, err)
	}

	log.Printf("proxy id=%s started url=%s target=%s", inst.info.ID, inst.info.ProxyURL, targetOrigin)
	m.emit(events.TypeProxyStarted, inst.info.ProxyURL, targetOrigin)
	return inst.info, nil
}

// StopProxy shuts down the instance keyed by proxyURL. Unknown URLs log a
// warning and do nothing.
func (m *Manager) StopProxy(proxyURL string) {
	m.mu.Lock()
	inst, ok := m.proxies[proxyURL]
	if ok {
		delete(m.proxies, proxyURL)
	}
	m.mu.Unlock()
	if !ok {
		log.Printf("proxy stop requested for unknown url=%s", proxyURL)
		return
	}
	inst.close()
	log.Printf("proxy id=%s stopped url=%s", inst.info.ID, proxyURL)
	m.emit(events.TypeProxyStopped, proxyURL, inst.info.TargetOrigin)
}

// ListActive returns a snapshot of all live proxies, ordered by creation.
func (m *Manager) ListActive() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.proxies))
	for _, inst := range m.proxies {
		out = append(out, inst.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// IsRunning reports whether proxyURL has a live worker.
func (m *Manager) IsRunning(proxyURL string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.proxies[proxyURL]
	return ok
}

// Cleanup stops every live proxy. Used on orchestrator shutdown.
func (m *Manager) Cleanup() {
	for _, info := range m.ListActive() {
		m.StopProxy(info.ProxyURL)
	}
}

// deregister removes an instance whose worker exited on its own (listener
// failure, crash). A normal StopProxy has already removed it.
func (m *Manager) deregister(inst *instance) {
	m.mu.Lock()
	current, ok := m.proxies[inst.info.ProxyURL]
	if ok && current == inst {
		delete(m.proxies, inst.info.ProxyURL)
	} else {
		ok = false
	}
	m.mu.Unlock()
	if ok {
		log.Printf("proxy id=%s worker exited, deregistered url=%s", inst.info.ID, inst.info.ProxyURL)
		m.emit(events.TypeProxyStopped, inst.info.ProxyURL, inst.info.TargetOrigin)
	}
}

func (m *Manager) emit(eventType, key, detail string) {
	if m.events != nil {
		m.events(events.New(eventType, key, detail))
	}
}

// validateOrigin requires an absolute http(s) URL with a host.
func validateOrigin(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ValidationError{TargetOrigin: raw, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ValidationError{TargetOrigin: raw, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return nil, &ValidationError{TargetOrigin: raw, Reason: "missing host"}
	}
	return u, nil
}
