package models

import "time"

// Show is a series record mirrored from the external catalog. Rows are owned
// by the catalog store and only change through catalog upserts.
type Show struct {
	ID        int64     `json:"id"`
	CatalogID int64     `json:"catalogId"`
	Name      string    `json:"name"`
	Summary   string    `json:"summary,omitempty"`
	Status    string    `json:"status"`
	Premiered string    `json:"premiered,omitempty"`
	Ended     string    `json:"ended,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Episode is a single episode record from the catalog. AirDate is a
// YYYY-MM-DD calendar date, empty when the catalog has not announced one.
// AirTime is free text from the catalog and may literally hold "TBD".
type Episode struct {
	ID        int64  `json:"id"`
	CatalogID int64  `json:"catalogId"`
	ShowID    int64  `json:"showId"`
	Season    int    `json:"season"`
	Number    int    `json:"number"`
	Name      string `json:"name,omitempty"`
	Summary   string `json:"summary,omitempty"`
	AirDate   string `json:"airDate,omitempty"`
	AirTime   string `json:"airTime,omitempty"`
	Runtime   int    `json:"runtimeMinutes,omitempty"`
}

// TrackedShow is a profile's subscription to a show together with the
// per-profile override flag.
type TrackedShow struct {
	Show           Show      `json:"show"`
	StatusOverride string    `json:"statusOverride,omitempty"`
	AddedAt        time.Time `json:"addedAt"`
}

// WatchMark records that a profile watched an episode. Presence means
// watched; there is at most one mark per (profile, episode).
type WatchMark struct {
	EpisodeID        int64     `json:"episodeId"`
	EpisodeCatalogID int64     `json:"episodeCatalogId"`
	WatchedAt        time.Time `json:"watchedAt"`
}

// EpisodeDetail is an episode as shown in the detail view, with the
// profile's watched flag attached.
type EpisodeDetail struct {
	Episode
	Watched bool `json:"watched"`
}

// SeasonDetail groups a season's episodes with aggregate watch counters.
type SeasonDetail struct {
	Season       int             `json:"season"`
	Episodes     []EpisodeDetail `json:"episodes"`
	WatchedCount int             `json:"watchedCount"`
	TotalCount   int             `json:"totalCount"`
	Watched      bool            `json:"watched"`
}

// CalendarDay is one day of the release calendar.
type CalendarDay struct {
	Date     string            `json:"date"`
	Episodes []CalendarEpisode `json:"episodes"`
}

// CalendarEpisode is an upcoming episode annotated with its show's name.
type CalendarEpisode struct {
	Episode
	ShowName string `json:"showName"`
}
