package sessions

import (
	"errors"
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	svc := NewService(time.Hour)

	session := svc.Create()
	if session.Token == "" {
		t.Fatal("expected a token")
	}

	got, err := svc.Get(session.Token)
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if got.ActiveProfileID != "" {
		t.Fatalf("new session should have no active profile, got %q", got.ActiveProfileID)
	}

	if _, err := svc.ActiveProfile(session.Token); !errors.Is(err, ErrNoActiveProfile) {
		t.Fatalf("expected ErrNoActiveProfile, got %v", err)
	}

	if _, err := svc.SetActiveProfile(session.Token, "p1"); err != nil {
		t.Fatalf("set active profile returned error: %v", err)
	}

	profileID, err := svc.ActiveProfile(session.Token)
	if err != nil {
		t.Fatalf("active profile returned error: %v", err)
	}
	if profileID != "p1" {
		t.Fatalf("expected active profile p1, got %q", profileID)
	}

	svc.Delete(session.Token)
	if _, err := svc.Get(session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	svc := NewService(time.Hour)

	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }

	session := svc.Create()

	current = current.Add(30 * time.Minute)
	if _, err := svc.Get(session.Token); err != nil {
		t.Fatalf("session should still be valid, got %v", err)
	}

	current = current.Add(31 * time.Minute)
	if _, err := svc.Get(session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
}

func TestDropProfileClearsSelection(t *testing.T) {
	svc := NewService(time.Hour)

	a := svc.Create()
	b := svc.Create()
	if _, err := svc.SetActiveProfile(a.Token, "p1"); err != nil {
		t.Fatalf("set active profile returned error: %v", err)
	}
	if _, err := svc.SetActiveProfile(b.Token, "p2"); err != nil {
		t.Fatalf("set active profile returned error: %v", err)
	}

	svc.DropProfile("p1")

	if _, err := svc.ActiveProfile(a.Token); !errors.Is(err, ErrNoActiveProfile) {
		t.Fatalf("expected selection cleared for dropped profile, got %v", err)
	}
	if profileID, err := svc.ActiveProfile(b.Token); err != nil || profileID != "p2" {
		t.Fatalf("other sessions must keep their selection, got %q, %v", profileID, err)
	}
}

func TestUnknownToken(t *testing.T) {
	svc := NewService(time.Hour)

	if _, err := svc.Get("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.SetActiveProfile("nope", "p1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
