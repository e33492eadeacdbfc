package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"showlog/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	showsHandler *handlers.ShowsHandler,
	calendarHandler *handlers.CalendarHandler,
	transferHandler *handlers.TransferHandler,
	profilesHandler *handlers.ProfilesHandler,
	sessionHandler *handlers.SessionHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	// Sessions
	api.HandleFunc("/session", sessionHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/session", sessionHandler.Current).Methods(http.MethodGet)
	api.HandleFunc("/session", sessionHandler.Destroy).Methods(http.MethodDelete)
	api.HandleFunc("/session/profile", sessionHandler.SetProfile).Methods(http.MethodPut)

	// Profiles
	api.HandleFunc("/profiles", profilesHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/profiles", profilesHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/profiles/{id}", profilesHandler.Update).Methods(http.MethodPut)
	api.HandleFunc("/profiles/{id}", profilesHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/profiles/{id}/pin", profilesHandler.SetPin).Methods(http.MethodPost)
	api.HandleFunc("/profiles/{id}/pin", profilesHandler.ClearPin).Methods(http.MethodDelete)

	// Library
	api.HandleFunc("/shows", showsHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/shows", showsHandler.Add).Methods(http.MethodPost)
	api.HandleFunc("/shows/{id}", showsHandler.Detail).Methods(http.MethodGet)
	api.HandleFunc("/shows/{id}", showsHandler.Remove).Methods(http.MethodDelete)
	api.HandleFunc("/shows/{id}/status", showsHandler.SetStatus).Methods(http.MethodPost)
	api.HandleFunc("/shows/{id}/seasons/{season}/watch", showsHandler.ToggleSeason).Methods(http.MethodPost)
	api.HandleFunc("/episodes/{id}/watch", showsHandler.ToggleEpisode).Methods(http.MethodPost)

	// Calendar
	api.HandleFunc("/calendar", calendarHandler.Upcoming).Methods(http.MethodGet)

	// Export / import
	api.HandleFunc("/export", transferHandler.Export).Methods(http.MethodGet)
	api.HandleFunc("/import", transferHandler.Import).Methods(http.MethodPost)
}
