// ABOUTME: Handler tests for the control API using stub app/proxy/history services.
// ABOUTME: Verifies routing, error-to-status mapping, and SSE broker fan-out.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/greenroom/builder"
	"github.com/2389-research/greenroom/events"
	"github.com/2389-research/greenroom/history"
	"github.com/2389-research/greenroom/proxy"
	"github.com/2389-research/greenroom/supervisor"
	"github.com/2389-research/greenroom/workspace"
)

type stubApps struct {
	startErr error
	started  []string
	stopped  []string
	cleaned  []string
	running  []supervisor.AppInfo
}

func (s *stubApps) Start(ctx context.Context, appID string, files []workspace.GeneratedFile) (supervisor.AppInfo, error) {
	s.started = append(s.started, appID)
	if s.startErr != nil {
		return supervisor.AppInfo{}, s.startErr
	}
	return supervisor.AppInfo{AppID: appID, Port: 41000, FrontDoorURL: "http://localhost:41000", Seq: 1}, nil
}

func (s *stubApps) Stop(appID string)    { s.stopped = append(s.stopped, appID) }
func (s *stubApps) Cleanup(appID string) { s.cleaned = append(s.cleaned, appID) }

func (s *stubApps) ListRunning() []supervisor.AppInfo { return s.running }

func (s *stubApps) Get(appID string) (supervisor.AppInfo, bool) {
	for _, info := range s.running {
		if info.AppID == appID {
			return info, true
		}
	}
	return supervisor.AppInfo{}, false
}

type stubProxies struct {
	startErr error
	started  []string
	stopped  []string
	active   []proxy.Info
}

func (s *stubProxies) StartProxy(targetOrigin string) (proxy.Info, error) {
	s.started = append(s.started, targetOrigin)
	if s.startErr != nil {
		return proxy.Info{}, s.startErr
	}
	return proxy.Info{ProxyURL: "http://localhost:42000", TargetOrigin: targetOrigin, Port: 42000}, nil
}

func (s *stubProxies) StopProxy(proxyURL string) { s.stopped = append(s.stopped, proxyURL) }

func (s *stubProxies) ListActive() []proxy.Info { return s.active }

type stubHistory struct {
	attempts []history.Attempt
}

func (s *stubHistory) Recent(limit int) ([]history.Attempt, error) { return s.attempts, nil }

func newTestServer(apps *stubApps, proxies *stubProxies) (*Server, *httptest.Server) {
	srv := &Server{Apps: apps, Proxies: proxies, History: &stubHistory{}, Broker: NewBroker()}
	return srv, httptest.NewServer(srv.Routes())
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestStartAppSuccess(t *testing.T) {
	apps := &stubApps{}
	_, ts := newTestServer(apps, &stubProxies{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/apps/app1/start",
		`{"files":[{"path":"index.html","content":"<html></html>"}]}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got startResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.AppID != "app1" || got.Port != 41000 {
		t.Errorf("response = %+v", got)
	}
	if got.ProxyURL != "" {
		t.Errorf("ProxyURL = %q without use_proxy", got.ProxyURL)
	}
}

func TestStartAppWithProxy(t *testing.T) {
	apps := &stubApps{}
	proxies := &stubProxies{}
	_, ts := newTestServer(apps, proxies)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/apps/app1/start",
		`{"files":[{"path":"index.html","content":"x"}],"use_proxy":true}`)
	defer resp.Body.Close()

	var got startResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.ProxyURL != "http://localhost:42000" {
		t.Errorf("ProxyURL = %q", got.ProxyURL)
	}
	if len(proxies.started) != 1 || proxies.started[0] != "http://localhost:41000" {
		t.Errorf("proxy started with %v, want the app's front door", proxies.started)
	}
}

func TestStartAppErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantOutput bool
	}{
		{
			name:       "build failure carries output",
			err:        &builder.BuildError{Step: "build", Output: "Could not resolve \"./Widget\" from \"src/App.jsx\""},
			wantStatus: http.StatusUnprocessableEntity,
			wantOutput: true,
		},
		{
			name:       "start in progress",
			err:        supervisor.ErrStartInProgress,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "materialization failure is generic",
			err:        &workspace.MaterializationError{AppID: "app1", Op: "mkdir", Err: fmt.Errorf("disk full")},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "spawn failure is generic",
			err:        &supervisor.SpawnError{AppID: "app1", Err: fmt.Errorf("no npx")},
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apps := &stubApps{startErr: tt.err}
			_, ts := newTestServer(apps, &stubProxies{})
			defer ts.Close()

			resp := postJSON(t, ts.URL+"/api/apps/app1/start",
				`{"files":[{"path":"index.html","content":"x"}]}`)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var got errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			if tt.wantOutput && !strings.Contains(got.Output, "Could not resolve") {
				t.Errorf("build output missing from response: %+v", got)
			}
			if !tt.wantOutput && got.Output != "" {
				t.Errorf("non-build error leaked detail: %+v", got)
			}
		})
	}
}

func TestStartAppRejectsEmptyFiles(t *testing.T) {
	apps := &stubApps{}
	_, ts := newTestServer(apps, &stubProxies{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/apps/app1/start", `{"files":[]}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if len(apps.started) != 0 {
		t.Error("Start was called despite empty files")
	}
}

func TestStopAndCleanup(t *testing.T) {
	apps := &stubApps{}
	_, ts := newTestServer(apps, &stubProxies{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/apps/app1/stop", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("stop status = %d, want 204", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/apps/app1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("cleanup status = %d, want 204", resp.StatusCode)
	}

	if len(apps.stopped) != 1 || len(apps.cleaned) != 1 {
		t.Errorf("stopped=%v cleaned=%v", apps.stopped, apps.cleaned)
	}
}

func TestGetAppNotFound(t *testing.T) {
	_, ts := newTestServer(&stubApps{}, &stubProxies{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/apps/ghost")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStartProxyValidationMapsTo400(t *testing.T) {
	proxies := &stubProxies{startErr: &proxy.ValidationError{TargetOrigin: "ftp://x", Reason: "scheme must be http or https"}}
	_, ts := newTestServer(&stubApps{}, proxies)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/proxies", `{"target_origin":"ftp://x"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStopProxyRequiresURL(t *testing.T) {
	proxies := &stubProxies{}
	_, ts := newTestServer(&stubApps{}, proxies)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/proxies", strings.NewReader(`{}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/proxies?url=http://localhost:42000", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if len(proxies.stopped) != 1 {
		t.Errorf("stopped = %v", proxies.stopped)
	}
}

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.Publish(events.New(events.TypeAppStarted, "app1", "http://localhost:41000"))

	for i, ch := range []<-chan events.Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != events.TypeAppStarted || e.Key != "app1" {
				t.Errorf("subscriber %d got %+v", i, e)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestFormatSSE(t *testing.T) {
	e := events.New(events.TypeAppHealed, "app1", "placeholders=2")
	got := formatSSE(e)
	if !strings.HasPrefix(got, "event: app.healed\ndata: {") {
		t.Errorf("framing wrong: %q", got)
	}
	if !strings.HasSuffix(got, "\n\n") {
		t.Errorf("missing terminating blank line: %q", got)
	}
	if !strings.Contains(got, `"key":"app1"`) {
		t.Errorf("payload missing key: %q", got)
	}
}
