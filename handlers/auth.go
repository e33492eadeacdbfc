package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"showlog/internal/watchstate"
	"showlog/services/sessions"
)

type sessionService interface {
	Get(token string) (sessions.Session, error)
	ActiveProfile(token string) (string, error)
}

type profileDirectory interface {
	Exists(id string) bool
}

// auth resolves the acting profile from the request's bearer token. Embedded
// by every profile-scoped handler.
type auth struct {
	Sessions sessionService
	Profiles profileDirectory
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// requireProfile returns the session's active profile. A missing or expired
// session is 401; a session that never selected a profile is 400.
func (a auth) requireProfile(w http.ResponseWriter, r *http.Request) (string, bool) {
	profileID, err := a.Sessions.ActiveProfile(bearerToken(r))
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		http.Error(w, "session required", http.StatusUnauthorized)
		return "", false
	case errors.Is(err, sessions.ErrNoActiveProfile):
		http.Error(w, "no active profile selected", http.StatusBadRequest)
		return "", false
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return "", false
	}

	if a.Profiles != nil && !a.Profiles.Exists(profileID) {
		http.Error(w, "profile not found", http.StatusBadRequest)
		return "", false
	}

	return profileID, true
}

// asOfParam reads the optional asOf=YYYY-MM-DD query parameter, defaulting
// to the current UTC date.
func asOfParam(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("asOf"))
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(watchstate.DateLayout, raw)
}
