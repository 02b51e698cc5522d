package handler

import (
	"encoding/json"
	"net/http"

	"trackgate/internal/session"
)

// SessionDirectory exposes the live device sessions.
type SessionDirectory interface {
	Sessions() []session.Info
	Lookup(id string) *session.Session
}

type SessionHandler struct {
	sessions SessionDirectory
}

func NewSessionHandler(sessions SessionDirectory) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.sessions.Sessions())
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}
	s := h.sessions.Lookup(id)
	if s == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Info())
}
