package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"showlog/models"
	"showlog/services/profiles"
)

type profileService interface {
	List() []models.Profile
	Create(name string) (models.Profile, error)
	Rename(id, name string) (models.Profile, error)
	SetColor(id, color string) (models.Profile, error)
	SetPin(id, pin string) (models.Profile, error)
	ClearPin(id string) (models.Profile, error)
	Delete(id string) error
	Exists(id string) bool
	VerifyPin(id, pin string) error
}

var _ profileService = (*profiles.Service)(nil)

type sessionCleaner interface {
	DropProfile(profileID string)
}

type ProfilesHandler struct {
	Service  profileService
	Sessions sessionCleaner
}

func NewProfilesHandler(service profileService, sessions sessionCleaner) *ProfilesHandler {
	return &ProfilesHandler{Service: service, Sessions: sessions}
}

func (h *ProfilesHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.List())
}

func (h *ProfilesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := h.Service.Create(payload.Name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, profiles.ErrNameRequired) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(profile)
}

// Update renames a profile and/or changes its color.
func (h *ProfilesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])

	var payload struct {
		Name  *string `json:"name"`
		Color *string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.Name == nil && payload.Color == nil {
		http.Error(w, "nothing to update", http.StatusBadRequest)
		return
	}

	var profile models.Profile
	var err error
	if payload.Name != nil {
		profile, err = h.Service.Rename(id, *payload.Name)
	}
	if err == nil && payload.Color != nil {
		profile, err = h.Service.SetColor(id, *payload.Color)
	}
	if err != nil {
		http.Error(w, err.Error(), profileErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

func (h *ProfilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])

	if err := h.Service.Delete(id); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, profiles.ErrProfileNotFound):
			status = http.StatusNotFound
		case errors.Is(err, profiles.ErrLastProfile):
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	if h.Sessions != nil {
		h.Sessions.DropProfile(id)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfilesHandler) SetPin(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])

	var payload struct {
		Pin string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := h.Service.SetPin(id, payload.Pin)
	if err != nil {
		http.Error(w, err.Error(), profileErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

func (h *ProfilesHandler) ClearPin(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])

	if _, err := h.Service.ClearPin(id); err != nil {
		http.Error(w, err.Error(), profileErrStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func profileErrStatus(err error) int {
	switch {
	case errors.Is(err, profiles.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, profiles.ErrNameRequired),
		errors.Is(err, profiles.ErrPinRequired),
		errors.Is(err, profiles.ErrPinTooShort):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
