package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"showlog/models"
)

type calendarService interface {
	UpcomingEpisodes(profileID string, asOf time.Time, days int) ([]models.CalendarDay, error)
}

type CalendarHandler struct {
	auth
	Service calendarService
}

func NewCalendarHandler(service calendarService, sessions sessionService, profiles profileDirectory) *CalendarHandler {
	return &CalendarHandler{auth: auth{Sessions: sessions, Profiles: profiles}, Service: service}
}

// Upcoming returns the release calendar for the next N days (default 7).
func (h *CalendarHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfile(w, r)
	if !ok {
		return
	}

	asOf, err := asOfParam(r)
	if err != nil {
		http.Error(w, "asOf must be formatted as YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days <= 0 || days > 90 {
			http.Error(w, "days must be between 1 and 90", http.StatusBadRequest)
			return
		}
	}

	calendar, err := h.Service.UpcomingEpisodes(profileID, asOf, days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if calendar == nil {
		calendar = []models.CalendarDay{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"days": calendar})
}
