// ABOUTME: HTTP control API for the orchestrator: app lifecycle, proxies, history, events.
// ABOUTME: Thin chi layer over the supervisor and proxy manager; holds no state of its own.
package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389-research/greenroom/history"
	"github.com/2389-research/greenroom/proxy"
	"github.com/2389-research/greenroom/supervisor"
	"github.com/2389-research/greenroom/workspace"
)

// AppService is the supervisor surface the API needs.
type AppService interface {
	Start(ctx context.Context, appID string, files []workspace.GeneratedFile) (supervisor.AppInfo, error)
	Stop(appID string)
	Cleanup(appID string)
	ListRunning() []supervisor.AppInfo
	Get(appID string) (supervisor.AppInfo, bool)
}

// ProxyService is the proxy manager surface the API needs.
type ProxyService interface {
	StartProxy(targetOrigin string) (proxy.Info, error)
	StopProxy(proxyURL string)
	ListActive() []proxy.Info
}

// HistoryService serves the attempt log. May be nil when history is
// disabled.
type HistoryService interface {
	Recent(limit int) ([]history.Attempt, error)
}

// Server wires the control API routes.
type Server struct {
	Apps    AppService
	Proxies ProxyService
	History HistoryService
	Broker  *Broker
}

// Routes builds the chi router for the control API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/apps", s.handleListApps)
		r.Route("/apps/{appID}", func(r chi.Router) {
			r.Get("/", s.handleGetApp)
			r.Post("/start", s.handleStartApp)
			r.Post("/stop", s.handleStopApp)
			r.Delete("/", s.handleCleanupApp)
		})

		r.Get("/proxies", s.handleListProxies)
		r.Post("/proxies", s.handleStartProxy)
		r.Delete("/proxies", s.handleStopProxy)

		r.Get("/history", s.handleHistory)
		r.Get("/events", s.handleEvents)
	})
	return r
}

// ListenAndServe runs the control API until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	log.Printf("web listening addr=%s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
