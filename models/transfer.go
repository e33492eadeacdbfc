package models

import "time"

// ExportDocument is the persisted export/import format. The shape is part of
// the wire contract: a round-trip through export and import must reproduce
// the same (catalogEpisodeId, watchedAt) pairs.
type ExportDocument struct {
	Version    int          `json:"version"`
	ExportedAt time.Time    `json:"exportedAt"`
	Shows      []ExportShow `json:"shows"`
}

// ExportShow is one subscribed show with its watched episodes.
type ExportShow struct {
	CatalogShowID   int64           `json:"catalogShowId"`
	Name            string          `json:"name"`
	AddedAt         *time.Time      `json:"addedAt,omitempty"`
	WatchedEpisodes []ExportEpisode `json:"watchedEpisodes"`
}

// ExportEpisode references a watched episode by its stable catalog id.
type ExportEpisode struct {
	CatalogEpisodeID int64      `json:"catalogEpisodeId"`
	WatchedAt        *time.Time `json:"watchedAt,omitempty"`
}

// ImportSummary reports what an import call actually applied.
type ImportSummary struct {
	Shows    int `json:"shows"`
	Episodes int `json:"episodes"`
}
