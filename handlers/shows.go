package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"showlog/internal/watchstate"
	"showlog/models"
	"showlog/services/catalog"
	"showlog/services/tracker"
)

type trackerService interface {
	AddShow(ctx context.Context, profileID string, catalogID int64) (models.Show, error)
	RemoveShow(profileID string, showID int64) error
	ToggleEpisode(profileID string, episodeID int64, watched bool) error
	ToggleSeason(profileID string, showID int64, season int, watched bool) error
	SetStatusOverride(profileID string, showID int64, override string) error
	ListShows(profileID string, asOf time.Time) ([]watchstate.Category, error)
	ShowDetail(profileID string, showID int64, asOf time.Time) (*tracker.ShowDetail, error)
}

var _ trackerService = (*tracker.Service)(nil)

type ShowsHandler struct {
	auth
	Service trackerService
}

func NewShowsHandler(service trackerService, sessions sessionService, profiles profileDirectory) *ShowsHandler {
	return &ShowsHandler{auth: auth{Sessions: sessions, Profiles: profiles}, Service: service}
}

// List returns every tracked show bucketed by derived state.
func (h *ShowsHandler) List(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfile(w, r)
	if !ok {
		return
	}

	asOf, err := asOfParam(r)
	if err != nil {
		http.Error(w, "asOf must be formatted as YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	categories, err := h.Service.ListShows(profileID, asOf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"categories": categories})
}

// Add subscribes the profile to a show by external catalog id.
func (h *ShowsHandler) Add(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfile(w, r)
	if !ok {
		return
	}

	var payload struct {
		CatalogShowID int64 `json:"catalogShowId"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.CatalogShowID <= 0 {
		http.Error(w, "catalogShowId is required", http.StatusBadRequest)
		return
	}

	show, err := h.Service.AddShow(r.Context(), profileID, payload.CatalogShowID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, catalog.ErrCatalogUnavailable) {
			status = http.StatusBadGateway
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"show": show})
}

// Detail returns the derived state plus the per-season breakdown.
func (h *ShowsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfile(w, r)
	if !ok {
		return
	}

	showID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	asOf, err := asOfParam(r)
	if err != nil {
		http.Error(w, "asOf must be formatted as YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	detail, err := h.Service.ShowDetail(profileID, showID, asOf)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, tracker.ErrShowNotLinked), errors.Is(err, catalog.ErrShowNotFound):
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

// Remove drops the subscription. The show must be stopped first.
func (h *ShowsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfile(w, r)
	if !ok {
		return
	}

	showID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.Service.RemoveShow(profileID, showID); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, tracker.ErrShowNotLinked):
			status = http.StatusNotFound
		case errors.Is(err, tracker.ErrNotStopped):
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleSeason marks or unmarks every episode of one season atomically.
func (h *ShowsHandler) ToggleSeason(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfile(w, r)
	if !ok {
		return
	}

	showID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	season, err := strconv.Atoi(mux.Vars(r)["season"])
	if err != nil {
		http.Error(w, "season must be a number", http.StatusBadRequest)
		return
	}

	var payload struct {
		Watched bool `json:"watched"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.ToggleSeason(profileID, showID, season, payload.Watched); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, tracker.ErrShowNotLinked) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// SetStatus sets or clears the profile's status override. null clears.
func (h *ShowsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfile(w, r)
	if !ok {
		return
	}

	showID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var payload struct {
		Status *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	override := ""
	if payload.Status != nil {
		override = *payload.Status
	}

	if err := h.Service.SetStatusOverride(profileID, showID, override); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, tracker.ErrInvalidOverride):
			status = http.StatusBadRequest
		case errors.Is(err, tracker.ErrShowNotLinked):
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// ToggleEpisode marks or unmarks one episode.
func (h *ShowsHandler) ToggleEpisode(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfile(w, r)
	if !ok {
		return
	}

	episodeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var payload struct {
		Watched bool `json:"watched"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.ToggleEpisode(profileID, episodeID, payload.Watched); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, tracker.ErrEpisodeNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, name+" must be a positive number", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
