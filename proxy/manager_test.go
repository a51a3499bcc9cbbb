// ABOUTME: Tests for the reverse proxy manager against an httptest backend.
// ABOUTME: Covers origin validation, end-to-end forwarding, stop, and cleanup.
package proxy

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStartProxyValidation(t *testing.T) {
	m := NewManager(nil)
	tests := []struct {
		name   string
		origin string
	}{
		{"empty", ""},
		{"relative", "/just/a/path"},
		{"bad scheme", "ftp://example.com"},
		{"no host", "http://"},
		{"garbage", "http://%zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.StartProxy(tt.origin)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T (%v), want *ValidationError", err, err)
			}
		})
	}
	if got := len(m.ListActive()); got != 0 {
		t.Errorf("ListActive() = %d entries after rejected starts, want 0", got)
	}
}

func TestProxyForwardsToTarget(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend", "yes")
		io.WriteString(w, "hello from backend")
	}))
	defer backend.Close()

	m := NewManager(nil)
	defer m.Cleanup()

	info, err := m.StartProxy(backend.URL)
	if err != nil {
		t.Fatalf("StartProxy() error: %v", err)
	}
	if !m.IsRunning(info.ProxyURL) {
		t.Error("IsRunning = false after StartProxy")
	}

	resp, err := http.Get(info.ProxyURL)
	if err != nil {
		t.Fatalf("GET through proxy: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Backend") != "yes" {
		t.Error("backend header did not survive the proxy")
	}
	if string(body) != "hello from backend" {
		t.Errorf("body = %q", body)
	}
}

func TestProxyBadGatewayOnDeadTarget(t *testing.T) {
	// A valid origin whose server is gone: forwarding fails per-request
	// with 502, the worker stays alive.
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := backend.URL
	backend.Close()

	m := NewManager(nil)
	defer m.Cleanup()

	info, err := m.StartProxy(target)
	if err != nil {
		t.Fatalf("StartProxy() error: %v", err)
	}

	resp, err := http.Get(info.ProxyURL)
	if err != nil {
		t.Fatalf("GET through proxy: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if !m.IsRunning(info.ProxyURL) {
		t.Error("worker died on a per-request forward error")
	}
}

func TestStartWorkerBindFailureLeavesNoRegistration(t *testing.T) {
	// Occupy a port so the worker's bind fails deterministically.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	m := NewManager(nil)
	target, err := validateOrigin("http://127.0.0.1:9")
	if err != nil {
		t.Fatalf("validateOrigin: %v", err)
	}

	if _, err := m.startWorker("http://127.0.0.1:9", target, port); err == nil {
		t.Fatal("startWorker() should fail when the port is taken")
	}
	if got := len(m.ListActive()); got != 0 {
		t.Errorf("ListActive() = %d entries after bind failure, want 0", got)
	}
	if m.IsRunning(fmt.Sprintf("http://localhost:%d", port)) {
		t.Error("IsRunning = true for a proxy whose worker never bound")
	}
}

func TestStopProxy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()

	m := NewManager(nil)
	info, err := m.StartProxy(backend.URL)
	if err != nil {
		t.Fatalf("StartProxy() error: %v", err)
	}

	m.StopProxy(info.ProxyURL)
	if m.IsRunning(info.ProxyURL) {
		t.Error("IsRunning = true after StopProxy")
	}
	if _, err := http.Get(info.ProxyURL); err == nil {
		t.Error("proxy still accepting connections after StopProxy")
	}

	// Unknown URL: warning only.
	m.StopProxy("http://localhost:1")
}

func TestCleanupStopsAll(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()

	m := NewManager(nil)
	for i := 0; i < 3; i++ {
		if _, err := m.StartProxy(backend.URL); err != nil {
			t.Fatalf("StartProxy() error: %v", err)
		}
	}
	if got := len(m.ListActive()); got != 3 {
		t.Fatalf("ListActive() = %d, want 3", got)
	}

	m.Cleanup()
	if got := len(m.ListActive()); got != 0 {
		t.Errorf("ListActive() = %d after Cleanup, want 0", got)
	}
}
