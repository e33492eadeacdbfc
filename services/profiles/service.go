// Package profiles manages the viewer personas watch tracking is scoped by.
package profiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"showlog/models"
)

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrNameRequired       = errors.New("name is required")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrPinRequired        = errors.New("PIN is required")
	ErrPinInvalid         = errors.New("invalid PIN")
	ErrPinTooShort        = errors.New("PIN must be at least 4 characters")
	ErrLastProfile        = errors.New("cannot delete the last profile")
)

// storedProfile is the on-disk shape. Profile's public JSON form hides the
// PIN hash, so persistence needs its own record.
type storedProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	PinHash   string    `json:"pinHash,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Service manages persistence of viewer profiles.
type Service struct {
	mu       sync.RWMutex
	path     string
	profiles map[string]models.Profile
}

// NewService creates a profiles service storing data inside the provided
// directory. A default profile is created on first run.
func NewService(storageDir string) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create profiles dir: %w", err)
	}

	svc := &Service{
		path:     filepath.Join(storageDir, "profiles.json"),
		profiles: make(map[string]models.Profile),
	}

	if err := svc.load(); err != nil {
		return nil, err
	}

	if err := svc.ensureDefaultProfile(); err != nil {
		return nil, err
	}

	return svc, nil
}

// List returns all profiles sorted by creation time, then name.
func (s *Service) List() []models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]models.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p)
	}
	sortProfiles(profiles)

	return profiles
}

// Exists reports whether a profile with the provided ID is registered.
func (s *Service) Exists(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.profiles[id]
	return ok
}

// Get returns the profile with the given ID if present.
func (s *Service) Get(id string) (models.Profile, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Profile{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[id]
	return profile, ok
}

// Create registers a new profile with the provided name.
func (s *Service) Create(name string) (models.Profile, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return models.Profile{}, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createLocked(trimmed)
}

// Rename updates the profile's name.
func (s *Service) Rename(id, name string) (models.Profile, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return models.Profile{}, ErrNameRequired
	}

	return s.update(id, func(p *models.Profile) {
		p.Name = trimmed
	})
}

// SetColor updates the profile's display color.
func (s *Service) SetColor(id, color string) (models.Profile, error) {
	return s.update(id, func(p *models.Profile) {
		p.Color = strings.TrimSpace(color)
	})
}

// SetPin sets or updates the profile's PIN.
func (s *Service) SetPin(id, pin string) (models.Profile, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return models.Profile{}, ErrPinRequired
	}
	if len(pin) < 4 {
		return models.Profile{}, ErrPinTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return models.Profile{}, fmt.Errorf("hash PIN: %w", err)
	}

	return s.update(id, func(p *models.Profile) {
		p.PinHash = string(hash)
	})
}

// ClearPin removes the profile's PIN.
func (s *Service) ClearPin(id string) (models.Profile, error) {
	return s.update(id, func(p *models.Profile) {
		p.PinHash = ""
	})
}

// VerifyPin checks the provided PIN against the stored hash. A profile
// without a PIN accepts anything.
func (s *Service) VerifyPin(id, pin string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrProfileNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[id]
	if !ok {
		return ErrProfileNotFound
	}

	if profile.PinHash == "" {
		return nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PinHash), []byte(pin)); err != nil {
		return ErrPinInvalid
	}

	return nil
}

// Delete removes a profile by ID. The last remaining profile cannot be
// deleted.
func (s *Service) Delete(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrProfileNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return ErrProfileNotFound
	}

	if len(s.profiles) <= 1 {
		return ErrLastProfile
	}

	delete(s.profiles, id)

	return s.saveLocked()
}

func (s *Service) update(id string, apply func(*models.Profile)) (models.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Profile{}, ErrProfileNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[id]
	if !ok {
		return models.Profile{}, ErrProfileNotFound
	}

	apply(&profile)
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[id] = profile

	if err := s.saveLocked(); err != nil {
		return models.Profile{}, err
	}

	return profile, nil
}

func (s *Service) ensureDefaultProfile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.profiles) > 0 {
		return nil
	}

	_, err := s.createLocked(models.DefaultProfileName)
	return err
}

func (s *Service) createLocked(name string) (models.Profile, error) {
	id := uuid.NewString()

	if len(s.profiles) == 0 {
		id = models.DefaultProfileID
	} else if _, exists := s.profiles[id]; exists {
		return models.Profile{}, fmt.Errorf("generated duplicate profile id")
	}

	now := time.Now().UTC()
	profile := models.Profile{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.profiles[profile.ID] = profile

	if err := s.saveLocked(); err != nil {
		return models.Profile{}, err
	}

	return profile, nil
}

func (s *Service) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open profiles file: %w", err)
	}
	defer file.Close()

	var stored []storedProfile
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode profiles: %w", err)
	}

	s.profiles = make(map[string]models.Profile, len(stored))
	for _, rec := range stored {
		if strings.TrimSpace(rec.ID) == "" {
			continue
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = rec.CreatedAt
		}
		s.profiles[rec.ID] = models.Profile{
			ID:        rec.ID,
			Name:      rec.Name,
			Color:     rec.Color,
			PinHash:   rec.PinHash,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}
	}

	return nil
}

func (s *Service) saveLocked() error {
	profiles := make([]models.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p)
	}
	sortProfiles(profiles)

	stored := make([]storedProfile, 0, len(profiles))
	for _, p := range profiles {
		stored = append(stored, storedProfile{
			ID:        p.ID,
			Name:      p.Name,
			Color:     p.Color,
			PinHash:   p.PinHash,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create profiles temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stored); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode profiles: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync profiles: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close profiles temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace profiles file: %w", err)
	}

	return nil
}

func sortProfiles(profiles []models.Profile) {
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].CreatedAt.Equal(profiles[j].CreatedAt) {
			return profiles[i].Name < profiles[j].Name
		}
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})
}
