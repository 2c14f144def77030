package handlers

import (
	"errors"
	"net/http"

	"github.com/isdelr/authgate/internal/apperr"
	"github.com/isdelr/authgate/internal/auth"
	"github.com/isdelr/authgate/internal/models"
)

const (
	protectedData      = "This is protected data."
	msgSessionNotFound = "Session not found"
)

// SessionLookup finds session metadata by token id.
type SessionLookup interface {
	Get(id string) (models.Session, error)
}

// ProtectedHandler serves resources that require a verified bearer token.
type ProtectedHandler struct {
	sessions SessionLookup
}

// NewProtectedHandler creates a new ProtectedHandler.
func NewProtectedHandler(sessions SessionLookup) *ProtectedHandler {
	return &ProtectedHandler{sessions: sessions}
}

type protectedResponse struct {
	Data string `json:"data"`
	User string `json:"user"`
}

// Protected returns the protected resource for the caller.
func (h *ProtectedHandler) Protected(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respondError(w, r, errors.New("no principal in context"), "Protected route served without token middleware")
		return
	}
	writeJSON(w, http.StatusOK, protectedResponse{Data: protectedData, User: p.Username})
}

// Session returns the metadata recorded when the caller's token was issued.
func (h *ProtectedHandler) Session(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respondError(w, r, errors.New("no principal in context"), "Protected route served without token middleware")
		return
	}
	if h.sessions == nil {
		writeMessage(w, http.StatusNotFound, msgSessionNotFound)
		return
	}

	s, err := h.sessions.Get(p.SessionID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, msgSessionNotFound)
			return
		}
		respondError(w, r, err, "Failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, s)
}
