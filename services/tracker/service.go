// Package tracker owns a profile's show subscriptions and watch marks, and
// exposes the mutation operations the watch-state derivation is recomputed
// from. State is never persisted here: every read re-derives it from raw
// facts via the watchstate package.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"showlog/internal/watchstate"
	"showlog/models"
	"showlog/services/catalog"
)

var (
	ErrProfileIDRequired = errors.New("profile id is required")
	ErrShowNotLinked     = errors.New("show is not in this profile's library")
	ErrEpisodeNotFound   = errors.New("episode is not in this profile's shows")
	ErrInvalidOverride   = errors.New(`status override must be "stopped" or empty`)
	ErrNotStopped        = errors.New("show must be stopped before it can be removed")
)

// ShowFetcher pulls a show from the external catalog when it is not mirrored
// locally yet.
type ShowFetcher interface {
	FetchShow(ctx context.Context, catalogID int64) (models.Show, []models.Episode, error)
}

// ShowDetail is the detail view of one tracked show.
type ShowDetail struct {
	Show           models.Show           `json:"show"`
	StatusOverride string                `json:"statusOverride,omitempty"`
	State          watchstate.State      `json:"state"`
	NextEpisode    *watchstate.Episode   `json:"nextEpisode,omitempty"`
	Stats          watchstate.Stats      `json:"stats"`
	Seasons        []models.SeasonDetail `json:"seasons"`
}

// Service implements the mutation operations and profile-scoped reads.
type Service struct {
	db      *sql.DB
	store   *catalog.Store
	fetcher ShowFetcher
	now     func() time.Time
}

func NewService(db *sql.DB, store *catalog.Store, fetcher ShowFetcher) *Service {
	return &Service{db: db, store: store, fetcher: fetcher, now: time.Now}
}

// AddShow subscribes a profile to a show, fetching it from the external
// catalog if it is not mirrored locally yet. Adding an already-linked show
// is a no-op.
func (s *Service) AddShow(ctx context.Context, profileID string, catalogID int64) (models.Show, error) {
	return s.AddShowAt(ctx, profileID, catalogID, s.now().UTC())
}

// AddShowAt is AddShow with an explicit link timestamp, used by import to
// preserve the original addedAt.
func (s *Service) AddShowAt(ctx context.Context, profileID string, catalogID int64, addedAt time.Time) (models.Show, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return models.Show{}, ErrProfileIDRequired
	}

	show, err := s.store.GetShowByCatalogID(catalogID)
	if errors.Is(err, catalog.ErrShowNotFound) {
		fetched, episodes, fetchErr := s.fetcher.FetchShow(ctx, catalogID)
		if fetchErr != nil {
			return models.Show{}, fetchErr
		}
		show, err = s.store.UpsertShow(fetched, episodes)
	}
	if err != nil {
		return models.Show{}, err
	}

	_, err = s.db.Exec(`
		INSERT INTO profile_shows (profile_id, show_id, status_override, added_at)
		VALUES (?, ?, NULL, ?)
		ON CONFLICT (profile_id, show_id) DO NOTHING`,
		profileID, show.ID, addedAt.UTC())
	if err != nil {
		return models.Show{}, fmt.Errorf("link show: %w", err)
	}

	return show, nil
}

// RemoveShow deletes the subscription and, atomically, every watch mark the
// profile holds for that show's episodes. The link must currently carry the
// "stopped" override; this guards against removing an actively-tracked show.
func (s *Service) RemoveShow(profileID string, showID int64) error {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return ErrProfileIDRequired
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin remove: %w", err)
	}
	defer tx.Rollback()

	var override sql.NullString
	err = tx.QueryRow(`SELECT status_override FROM profile_shows WHERE profile_id = ? AND show_id = ?`,
		profileID, showID).Scan(&override)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrShowNotLinked
	}
	if err != nil {
		return fmt.Errorf("check link: %w", err)
	}
	if override.String != watchstate.StatusOverrideStopped {
		return ErrNotStopped
	}

	if _, err := tx.Exec(`
		DELETE FROM watch_marks
		WHERE profile_id = ? AND episode_id IN (SELECT id FROM episodes WHERE show_id = ?)`,
		profileID, showID); err != nil {
		return fmt.Errorf("delete marks: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM profile_shows WHERE profile_id = ? AND show_id = ?`,
		profileID, showID); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}

	return tx.Commit()
}

// ToggleEpisode marks or unmarks a single episode. Both directions are
// idempotent: marking twice refreshes the timestamp of the one existing row,
// unmarking an unwatched episode does nothing.
func (s *Service) ToggleEpisode(profileID string, episodeID int64, watched bool) error {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return ErrProfileIDRequired
	}

	// The episode must belong to a show the profile is subscribed to.
	var linked int
	err := s.db.QueryRow(`
		SELECT 1 FROM episodes e
		JOIN profile_shows ps ON ps.show_id = e.show_id AND ps.profile_id = ?
		WHERE e.id = ?`, profileID, episodeID).Scan(&linked)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEpisodeNotFound
	}
	if err != nil {
		return fmt.Errorf("check episode: %w", err)
	}

	if watched {
		_, err = s.db.Exec(`
			INSERT INTO watch_marks (profile_id, episode_id, watched_at)
			VALUES (?, ?, ?)
			ON CONFLICT (profile_id, episode_id) DO UPDATE SET watched_at = excluded.watched_at`,
			profileID, episodeID, s.now().UTC())
		if err != nil {
			return fmt.Errorf("upsert mark: %w", err)
		}
		return nil
	}

	if _, err = s.db.Exec(`DELETE FROM watch_marks WHERE profile_id = ? AND episode_id = ?`,
		profileID, episodeID); err != nil {
		return fmt.Errorf("delete mark: %w", err)
	}
	return nil
}

// ToggleSeason applies ToggleEpisode semantics to every episode of a season
// as one transaction: either all marks reach the target state or none do.
// Episodes marked in the same call share one timestamp.
func (s *Service) ToggleSeason(profileID string, showID int64, season int, watched bool) error {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return ErrProfileIDRequired
	}
	if _, _, err := s.link(profileID, showID); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin season toggle: %w", err)
	}
	defer tx.Rollback()

	if watched {
		markedAt := s.now().UTC()
		rows, err := tx.Query(`SELECT id FROM episodes WHERE show_id = ? AND season = ?`, showID, season)
		if err != nil {
			return fmt.Errorf("query season: %w", err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan episode id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate season: %w", err)
		}

		for _, id := range ids {
			if _, err := tx.Exec(`
				INSERT INTO watch_marks (profile_id, episode_id, watched_at)
				VALUES (?, ?, ?)
				ON CONFLICT (profile_id, episode_id) DO UPDATE SET watched_at = excluded.watched_at`,
				profileID, id, markedAt); err != nil {
				return fmt.Errorf("upsert season mark: %w", err)
			}
		}
	} else {
		if _, err := tx.Exec(`
			DELETE FROM watch_marks
			WHERE profile_id = ? AND episode_id IN
			    (SELECT id FROM episodes WHERE show_id = ? AND season = ?)`,
			profileID, showID, season); err != nil {
			return fmt.Errorf("delete season marks: %w", err)
		}
	}

	return tx.Commit()
}

// SetStatusOverride sets or clears the profile-level override. The only
// legal non-empty value is "stopped". Watch marks are never touched.
func (s *Service) SetStatusOverride(profileID string, showID int64, override string) error {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return ErrProfileIDRequired
	}
	override = strings.TrimSpace(override)
	if override != "" && override != watchstate.StatusOverrideStopped {
		return ErrInvalidOverride
	}

	res, err := s.db.Exec(`
		UPDATE profile_shows SET status_override = NULLIF(?, '')
		WHERE profile_id = ? AND show_id = ?`,
		override, profileID, showID)
	if err != nil {
		return fmt.Errorf("set override: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set override: %w", err)
	}
	if affected == 0 {
		return ErrShowNotLinked
	}
	return nil
}

// ListShows derives every linked show's state as of the given date and
// buckets the results into the fixed category order.
func (s *Service) ListShows(profileID string, asOf time.Time) ([]watchstate.Category, error) {
	links, err := s.Links(profileID)
	if err != nil {
		return nil, err
	}

	date := watchstate.DateOf(asOf)
	states := make([]watchstate.ShowState, 0, len(links))
	for _, link := range links {
		episodes, err := s.watchstateEpisodes(profileID, link.Show.ID)
		if err != nil {
			return nil, err
		}

		result := watchstate.Derive(watchstate.ShowInfo{Status: link.Show.Status}, episodes, link.StatusOverride, date)
		states = append(states, watchstate.ShowState{
			ShowID:      link.Show.ID,
			CatalogID:   link.Show.CatalogID,
			Name:        link.Show.Name,
			ImageURL:    link.Show.ImageURL,
			State:       result.State,
			NextEpisode: result.NextEpisode,
			Stats:       result.Stats,
		})
	}

	return watchstate.Categorize(states), nil
}

// ShowDetail returns the derived state plus a per-season episode breakdown.
func (s *Service) ShowDetail(profileID string, showID int64, asOf time.Time) (*ShowDetail, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, ErrProfileIDRequired
	}

	override, _, err := s.link(profileID, showID)
	if err != nil {
		return nil, err
	}

	show, err := s.store.GetShow(showID)
	if err != nil {
		return nil, err
	}
	episodes, err := s.store.Episodes(showID)
	if err != nil {
		return nil, err
	}
	marks, err := s.markSet(profileID, showID)
	if err != nil {
		return nil, err
	}

	wsEpisodes := make([]watchstate.Episode, 0, len(episodes))
	bySeason := make(map[int][]models.EpisodeDetail)
	var seasonNumbers []int
	for _, ep := range episodes {
		watched := marks[ep.ID]
		wsEpisodes = append(wsEpisodes, toWatchstateEpisode(ep, watched))
		if _, seen := bySeason[ep.Season]; !seen {
			seasonNumbers = append(seasonNumbers, ep.Season)
		}
		bySeason[ep.Season] = append(bySeason[ep.Season], models.EpisodeDetail{Episode: ep, Watched: watched})
	}
	sort.Ints(seasonNumbers)

	seasons := make([]models.SeasonDetail, 0, len(seasonNumbers))
	for _, number := range seasonNumbers {
		eps := bySeason[number]
		watchedCount := 0
		for _, ep := range eps {
			if ep.Watched {
				watchedCount++
			}
		}
		seasons = append(seasons, models.SeasonDetail{
			Season:       number,
			Episodes:     eps,
			WatchedCount: watchedCount,
			TotalCount:   len(eps),
			Watched:      watchedCount == len(eps),
		})
	}

	result := watchstate.Derive(watchstate.ShowInfo{Status: show.Status}, wsEpisodes, override, watchstate.DateOf(asOf))

	return &ShowDetail{
		Show:           show,
		StatusOverride: override,
		State:          result.State,
		NextEpisode:    result.NextEpisode,
		Stats:          result.Stats,
		Seasons:        seasons,
	}, nil
}

// UpcomingEpisodes builds the release calendar: episodes of linked shows
// airing within days after asOf. Episodes whose air-time field literally
// reads "TBD" are excluded; this is a separate predicate from the
// missing-airdate rule used for release checks.
func (s *Service) UpcomingEpisodes(profileID string, asOf time.Time, days int) ([]models.CalendarDay, error) {
	links, err := s.Links(profileID)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}

	from := watchstate.DateOf(asOf)
	until := watchstate.DateOf(asOf.AddDate(0, 0, days))

	byDate := make(map[string][]models.CalendarEpisode)
	var dates []string
	for _, link := range links {
		episodes, err := s.store.Episodes(link.Show.ID)
		if err != nil {
			return nil, err
		}
		for _, ep := range episodes {
			if ep.AirDate == "" || ep.AirDate <= from || ep.AirDate > until {
				continue
			}
			if ep.AirTime == "TBD" {
				continue
			}
			if _, seen := byDate[ep.AirDate]; !seen {
				dates = append(dates, ep.AirDate)
			}
			byDate[ep.AirDate] = append(byDate[ep.AirDate], models.CalendarEpisode{
				Episode:  ep,
				ShowName: link.Show.Name,
			})
		}
	}
	sort.Strings(dates)

	calendar := make([]models.CalendarDay, 0, len(dates))
	for _, date := range dates {
		episodes := byDate[date]
		sort.Slice(episodes, func(i, j int) bool {
			if episodes[i].AirTime != episodes[j].AirTime {
				return episodes[i].AirTime < episodes[j].AirTime
			}
			return episodes[i].ShowName < episodes[j].ShowName
		})
		calendar = append(calendar, models.CalendarDay{Date: date, Episodes: episodes})
	}

	return calendar, nil
}

// Links returns every show the profile is subscribed to.
func (s *Service) Links(profileID string) ([]models.TrackedShow, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, ErrProfileIDRequired
	}

	rows, err := s.db.Query(`
		SELECT s.id, s.catalog_id, s.name, s.summary, s.status, s.premiered, s.ended, s.image_url, s.updated_at,
		       ps.status_override, ps.added_at
		FROM profile_shows ps
		JOIN shows s ON s.id = ps.show_id
		WHERE ps.profile_id = ?
		ORDER BY ps.added_at`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var links []models.TrackedShow
	for rows.Next() {
		var link models.TrackedShow
		var override sql.NullString
		if err := rows.Scan(&link.Show.ID, &link.Show.CatalogID, &link.Show.Name, &link.Show.Summary,
			&link.Show.Status, &link.Show.Premiered, &link.Show.Ended, &link.Show.ImageURL,
			&link.Show.UpdatedAt, &override, &link.AddedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		link.StatusOverride = override.String
		links = append(links, link)
	}
	return links, rows.Err()
}

// Marks returns the profile's watch marks for one show, ordered by episode.
func (s *Service) Marks(profileID string, showID int64) ([]models.WatchMark, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, ErrProfileIDRequired
	}

	rows, err := s.db.Query(`
		SELECT wm.episode_id, e.catalog_id, wm.watched_at
		FROM watch_marks wm
		JOIN episodes e ON e.id = wm.episode_id
		WHERE wm.profile_id = ? AND e.show_id = ?
		ORDER BY e.season, e.number`, profileID, showID)
	if err != nil {
		return nil, fmt.Errorf("query marks: %w", err)
	}
	defer rows.Close()

	var marks []models.WatchMark
	for rows.Next() {
		var mark models.WatchMark
		if err := rows.Scan(&mark.EpisodeID, &mark.EpisodeCatalogID, &mark.WatchedAt); err != nil {
			return nil, fmt.Errorf("scan mark: %w", err)
		}
		marks = append(marks, mark)
	}
	return marks, rows.Err()
}

// MarkByCatalogID upserts a watch mark addressed by the episode's stable
// catalog id, used by import to restore marks with their original
// timestamps. The episode's show must be linked to the profile.
func (s *Service) MarkByCatalogID(profileID string, episodeCatalogID int64, watchedAt time.Time) error {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return ErrProfileIDRequired
	}

	var episodeID int64
	err := s.db.QueryRow(`
		SELECT e.id FROM episodes e
		JOIN profile_shows ps ON ps.show_id = e.show_id AND ps.profile_id = ?
		WHERE e.catalog_id = ?`, profileID, episodeCatalogID).Scan(&episodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEpisodeNotFound
	}
	if err != nil {
		return fmt.Errorf("resolve episode: %w", err)
	}

	if _, err := s.db.Exec(`
		INSERT INTO watch_marks (profile_id, episode_id, watched_at)
		VALUES (?, ?, ?)
		ON CONFLICT (profile_id, episode_id) DO UPDATE SET watched_at = excluded.watched_at`,
		profileID, episodeID, watchedAt.UTC()); err != nil {
		return fmt.Errorf("upsert mark: %w", err)
	}
	return nil
}

func (s *Service) link(profileID string, showID int64) (override string, addedAt time.Time, err error) {
	var nullable sql.NullString
	err = s.db.QueryRow(`SELECT status_override, added_at FROM profile_shows WHERE profile_id = ? AND show_id = ?`,
		profileID, showID).Scan(&nullable, &addedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, ErrShowNotLinked
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("check link: %w", err)
	}
	return nullable.String, addedAt, nil
}

func (s *Service) markSet(profileID string, showID int64) (map[int64]bool, error) {
	rows, err := s.db.Query(`
		SELECT wm.episode_id FROM watch_marks wm
		JOIN episodes e ON e.id = wm.episode_id
		WHERE wm.profile_id = ? AND e.show_id = ?`, profileID, showID)
	if err != nil {
		return nil, fmt.Errorf("query marks: %w", err)
	}
	defer rows.Close()

	marks := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan mark: %w", err)
		}
		marks[id] = true
	}
	return marks, rows.Err()
}

func (s *Service) watchstateEpisodes(profileID string, showID int64) ([]watchstate.Episode, error) {
	episodes, err := s.store.Episodes(showID)
	if err != nil {
		return nil, err
	}
	marks, err := s.markSet(profileID, showID)
	if err != nil {
		return nil, err
	}

	out := make([]watchstate.Episode, 0, len(episodes))
	for _, ep := range episodes {
		out = append(out, toWatchstateEpisode(ep, marks[ep.ID]))
	}
	return out, nil
}

func toWatchstateEpisode(ep models.Episode, watched bool) watchstate.Episode {
	return watchstate.Episode{
		ID:      ep.ID,
		Season:  ep.Season,
		Number:  ep.Number,
		Name:    ep.Name,
		AirDate: ep.AirDate,
		AirTime: ep.AirTime,
		Runtime: ep.Runtime,
		Watched: watched,
	}
}
