// ABOUTME: JSON handlers for the control API, including error-to-status mapping.
// ABOUTME: Build failures surface the build tool's output; everything else stays generic.
package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/2389-research/greenroom/builder"
	"github.com/2389-research/greenroom/ports"
	"github.com/2389-research/greenroom/proxy"
	"github.com/2389-research/greenroom/supervisor"
	"github.com/2389-research/greenroom/workspace"
)

// maxOutputTail bounds the build output echoed to API callers.
const maxOutputTail = 8192

type startRequest struct {
	Files    []workspace.GeneratedFile `json:"files"`
	UseProxy bool                      `json:"use_proxy"`
}

type startResponse struct {
	supervisor.AppInfo
	ProxyURL string `json:"proxy_url,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Output string `json:"output,omitempty"`
}

func (s *Server) handleStartApp(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	if len(req.Files) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "files must not be empty"})
		return
	}

	info, err := s.Apps.Start(r.Context(), appID, req.Files)
	if err != nil {
		writeStartError(w, err)
		return
	}

	resp := startResponse{AppInfo: info}
	if req.UseProxy {
		pinfo, perr := s.Proxies.StartProxy(info.FrontDoorURL)
		if perr != nil {
			// The preview is up; a failed proxy start degrades to the
			// direct URL rather than failing the whole call.
			log.Printf("web app=%s proxy start failed, falling back to direct url: %v", appID, perr)
		} else {
			resp.ProxyURL = pinfo.ProxyURL
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeStartError maps the error taxonomy onto HTTP statuses. Only build
// failures carry detail: the upstream generator needs the raw output to
// decide whether to regenerate.
func writeStartError(w http.ResponseWriter, err error) {
	var berr *builder.BuildError
	var merr *workspace.MaterializationError
	var serr *supervisor.SpawnError
	var aerr *ports.AllocationError
	switch {
	case errors.As(err, &berr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "build failed", Output: tail(berr.Output, maxOutputTail)})
	case errors.Is(err, supervisor.ErrStartInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "start already in progress"})
	case errors.As(err, &merr):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not materialize project"})
	case errors.As(err, &serr):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not start preview server"})
	case errors.As(err, &aerr):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "no ports available"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "preview start failed"})
	}
}

func (s *Server) handleStopApp(w http.ResponseWriter, r *http.Request) {
	s.Apps.Stop(chi.URLParam(r, "appID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCleanupApp(w http.ResponseWriter, r *http.Request) {
	s.Apps.Cleanup(chi.URLParam(r, "appID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"apps": s.Apps.ListRunning()})
}

func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	info, ok := s.Apps.Get(appID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not running"})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type proxyRequest struct {
	TargetOrigin string `json:"target_origin"`
	ProxyURL     string `json:"proxy_url"`
}

func (s *Server) handleStartProxy(w http.ResponseWriter, r *http.Request) {
	var req proxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	info, err := s.Proxies.StartProxy(req.TargetOrigin)
	if err != nil {
		var verr *proxy.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "proxy start failed"})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleStopProxy(w http.ResponseWriter, r *http.Request) {
	proxyURL := r.URL.Query().Get("url")
	if proxyURL == "" {
		var req proxyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			proxyURL = req.ProxyURL
		}
	}
	if proxyURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "proxy_url is required"})
		return
	}
	s.Proxies.StopProxy(proxyURL)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListProxies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"proxies": s.Proxies.ListActive()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "history is disabled"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	attempts, err := s.History.Recent(limit)
	if err != nil {
		log.Printf("web history query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "history query failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web encode response failed: %v", err)
	}
}

func tail(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[len(text)-max:]
}
