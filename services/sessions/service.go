// Package sessions issues bearer tokens and tracks which profile a session
// is acting as. Sessions are held in memory only; a restart signs everyone
// out.
package sessions

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrNoActiveProfile = errors.New("no active profile selected")
)

// DefaultTTL is how long a session stays valid without being recreated.
const DefaultTTL = 30 * 24 * time.Hour

// Session is one authenticated client. ActiveProfileID stays empty until the
// client picks a profile.
type Session struct {
	Token           string    `json:"token"`
	ActiveProfileID string    `json:"activeProfileId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// Service manages in-memory sessions.
type Service struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]Session
	now      func() time.Time
}

func NewService(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		ttl:      ttl,
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Create issues a new session with no active profile.
func (s *Service) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	session := Session{
		Token:     uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.sessions[session.Token] = session

	return session
}

// Get returns the session for a token. Expired sessions are dropped on
// access.
func (s *Service) Get(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if s.now().UTC().After(session.ExpiresAt) {
		delete(s.sessions, token)
		return Session{}, ErrSessionNotFound
	}

	return session, nil
}

// SetActiveProfile switches the session to act as the given profile. An
// empty profile id clears the selection.
func (s *Service) SetActiveProfile(token, profileID string) (Session, error) {
	token = strings.TrimSpace(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok || s.now().UTC().After(session.ExpiresAt) {
		delete(s.sessions, token)
		return Session{}, ErrSessionNotFound
	}

	session.ActiveProfileID = strings.TrimSpace(profileID)
	s.sessions[token] = session

	return session, nil
}

// ActiveProfile returns the profile the session is acting as.
func (s *Service) ActiveProfile(token string) (string, error) {
	session, err := s.Get(token)
	if err != nil {
		return "", err
	}
	if session.ActiveProfileID == "" {
		return "", ErrNoActiveProfile
	}
	return session.ActiveProfileID, nil
}

// Delete removes a session. Deleting an unknown token is a no-op.
func (s *Service) Delete(token string) {
	token = strings.TrimSpace(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
}

// DropProfile clears the active-profile selection from every session acting
// as the given profile. Called when a profile is deleted.
func (s *Service) DropProfile(profileID string) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if session.ActiveProfileID == profileID {
			session.ActiveProfileID = ""
			s.sessions[token] = session
		}
	}
}
