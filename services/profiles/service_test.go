package profiles_test

import (
	"errors"
	"testing"

	"showlog/models"
	"showlog/services/profiles"
)

func TestServiceInitialisesDefaultProfile(t *testing.T) {
	svc, err := profiles.NewService(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	list := svc.List()
	if len(list) != 1 {
		t.Fatalf("expected exactly one profile, got %d", len(list))
	}

	if list[0].ID != models.DefaultProfileID {
		t.Fatalf("expected default profile id %q, got %q", models.DefaultProfileID, list[0].ID)
	}
	if list[0].Name != models.DefaultProfileName {
		t.Fatalf("expected default profile name %q, got %q", models.DefaultProfileName, list[0].Name)
	}
}

func TestServiceCreateRenameAndDelete(t *testing.T) {
	svc, err := profiles.NewService(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	created, err := svc.Create("Evening Watcher")
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	if created.ID == "" {
		t.Fatalf("expected created profile to have id")
	}

	renamed, err := svc.Rename(created.ID, "Night Owl")
	if err != nil {
		t.Fatalf("rename returned error: %v", err)
	}

	if renamed.Name != "Night Owl" {
		t.Fatalf("expected renamed profile to have updated name, got %q", renamed.Name)
	}

	if err := svc.Delete(created.ID); err != nil {
		t.Fatalf("delete returned error: %v", err)
	}

	if svc.Exists(created.ID) {
		t.Fatalf("expected profile to be deleted")
	}
}

func TestDeleteLastProfileFails(t *testing.T) {
	svc, err := profiles.NewService(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	list := svc.List()
	if len(list) != 1 {
		t.Fatalf("expected exactly one profile, got %d", len(list))
	}

	if err := svc.Delete(list[0].ID); !errors.Is(err, profiles.ErrLastProfile) {
		t.Fatalf("expected ErrLastProfile, got %v", err)
	}
}

func TestPinLifecycle(t *testing.T) {
	svc, err := profiles.NewService(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	id := svc.List()[0].ID

	// No PIN set: anything verifies.
	if err := svc.VerifyPin(id, "whatever"); err != nil {
		t.Fatalf("verify without a PIN should succeed, got %v", err)
	}

	if _, err := svc.SetPin(id, "12"); !errors.Is(err, profiles.ErrPinTooShort) {
		t.Fatalf("expected ErrPinTooShort, got %v", err)
	}

	updated, err := svc.SetPin(id, "4321")
	if err != nil {
		t.Fatalf("set pin returned error: %v", err)
	}
	if !updated.HasPin() {
		t.Fatal("expected profile to report a PIN after SetPin")
	}

	if err := svc.VerifyPin(id, "4321"); err != nil {
		t.Fatalf("verify with correct PIN failed: %v", err)
	}
	if err := svc.VerifyPin(id, "0000"); !errors.Is(err, profiles.ErrPinInvalid) {
		t.Fatalf("expected ErrPinInvalid, got %v", err)
	}

	cleared, err := svc.ClearPin(id)
	if err != nil {
		t.Fatalf("clear pin returned error: %v", err)
	}
	if cleared.HasPin() {
		t.Fatal("expected PIN to be cleared")
	}
}

func TestPinSurvivesReload(t *testing.T) {
	dir := t.TempDir()

	svc, err := profiles.NewService(dir)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	id := svc.List()[0].ID
	if _, err := svc.SetPin(id, "4321"); err != nil {
		t.Fatalf("set pin returned error: %v", err)
	}

	reloaded, err := profiles.NewService(dir)
	if err != nil {
		t.Fatalf("failed to reload service: %v", err)
	}

	if err := reloaded.VerifyPin(id, "4321"); err != nil {
		t.Fatalf("verify after reload failed: %v", err)
	}
	if err := reloaded.VerifyPin(id, "9999"); !errors.Is(err, profiles.ErrPinInvalid) {
		t.Fatalf("expected ErrPinInvalid after reload, got %v", err)
	}
}
