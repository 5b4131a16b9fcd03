package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ccbeacon/ccbeacon/internal/session"
)

type sessionDetailsResponse struct {
	Session session.View `json:"session"`
	Index   int          `json:"index"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r, http.MethodGet) {
		return
	}
	snap, err := s.cfg.Sessions.Snapshot(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "failed to load sessions")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleSessionByID serves GET and DELETE /api/sessions/{id} and
// POST /api/sessions/{id}/focus.
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/sessions/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "session id is required")
		return
	}

	switch action {
	case "":
		if !s.guard(w, r, http.MethodGet, http.MethodDelete) {
			return
		}
		if r.Method == http.MethodDelete {
			s.forget(w, r, id)
			return
		}
		s.details(w, r, id)
	case "focus":
		if !s.guard(w, r, http.MethodPost) {
			return
		}
		s.focus(w, r, id)
	default:
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	}
}

func (s *Server) details(w http.ResponseWriter, r *http.Request, id string) {
	snap, err := s.cfg.Sessions.Snapshot(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "failed to load sessions")
		return
	}
	for i, v := range snap.Sessions {
		if v.ID == id {
			writeJSON(w, http.StatusOK, sessionDetailsResponse{Session: v, Index: i})
			return
		}
	}
	writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
}

func (s *Server) forget(w http.ResponseWriter, r *http.Request, id string) {
	if s.readOnly() {
		writeAPIError(w, http.StatusForbidden, "READ_ONLY", "server is read-only")
		return
	}
	if err := s.cfg.Actions.Forget(r.Context(), id); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) focus(w http.ResponseWriter, r *http.Request, id string) {
	if s.readOnly() {
		writeAPIError(w, http.StatusForbidden, "READ_ONLY", "server is read-only")
		return
	}
	if s.cfg.Focuser == nil {
		writeAPIError(w, http.StatusNotImplemented, "FOCUS_UNAVAILABLE", "no focus command configured")
		return
	}
	if err := s.cfg.Actions.Focus(r.Context(), id, s.cfg.Focuser); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
	case errors.Is(err, session.ErrNoProcess):
		writeAPIError(w, http.StatusConflict, "NO_PROCESS", "session has no known process")
	case errors.Is(err, session.ErrEngineStopped):
		writeAPIError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "engine stopped")
	default:
		webLog.Warn("session_action_failed", slog.String("error", err.Error()))
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "action failed")
	}
}
