package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"showlog/services/profiles"
	"showlog/services/sessions"
)

type sessionAdmin interface {
	Create() sessions.Session
	Get(token string) (sessions.Session, error)
	SetActiveProfile(token, profileID string) (sessions.Session, error)
	Delete(token string)
}

var _ sessionAdmin = (*sessions.Service)(nil)

type pinVerifier interface {
	Exists(id string) bool
	VerifyPin(id, pin string) error
}

type SessionHandler struct {
	Sessions sessionAdmin
	Profiles pinVerifier
}

func NewSessionHandler(sess sessionAdmin, prof pinVerifier) *SessionHandler {
	return &SessionHandler{Sessions: sess, Profiles: prof}
}

type sessionPayload struct {
	ProfileID string `json:"profileId"`
	Pin       string `json:"pin"`
}

// Create issues a new session. A profile may be selected in the same call by
// passing profileId (and its PIN when one is set).
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload sessionPayload
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	session := h.Sessions.Create()

	if profileID := strings.TrimSpace(payload.ProfileID); profileID != "" {
		if !h.selectProfile(w, session.Token, profileID, payload.Pin) {
			h.Sessions.Delete(session.Token)
			return
		}
		session, _ = h.Sessions.Get(session.Token)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(session)
}

// Current returns the caller's session.
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	session, err := h.Sessions.Get(bearerToken(r))
	if err != nil {
		http.Error(w, "session required", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// SetProfile switches which profile the session acts as.
func (h *SessionHandler) SetProfile(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if _, err := h.Sessions.Get(token); err != nil {
		http.Error(w, "session required", http.StatusUnauthorized)
		return
	}

	var payload sessionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profileID := strings.TrimSpace(payload.ProfileID)
	if profileID == "" {
		http.Error(w, "profileId is required", http.StatusBadRequest)
		return
	}

	if !h.selectProfile(w, token, profileID, payload.Pin) {
		return
	}

	session, err := h.Sessions.Get(token)
	if err != nil {
		http.Error(w, "session required", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// Destroy signs the session out. Unknown tokens are fine.
func (h *SessionHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Delete(bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) selectProfile(w http.ResponseWriter, token, profileID, pin string) bool {
	if !h.Profiles.Exists(profileID) {
		http.Error(w, "profile not found", http.StatusNotFound)
		return false
	}

	if err := h.Profiles.VerifyPin(profileID, pin); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, profiles.ErrProfileNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return false
	}

	if _, err := h.Sessions.SetActiveProfile(token, profileID); err != nil {
		http.Error(w, "session required", http.StatusUnauthorized)
		return false
	}

	return true
}
