package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"showlog/models"
)

// ErrShowNotFound is returned when a show is absent from the local catalog.
var ErrShowNotFound = errors.New("show not found in catalog")

// Store persists show and episode records mirrored from the external
// catalog. Upserts are idempotent by catalog id, so a background refresh
// racing a user-initiated add converges to one row.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// UpsertShow inserts or updates a show and its episodes, keyed by their
// catalog ids. Returns the stored show with local ids filled in.
func (s *Store) UpsertShow(show models.Show, episodes []models.Episode) (models.Show, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return models.Show{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	_, err = tx.Exec(`
		INSERT INTO shows (catalog_id, name, summary, status, premiered, ended, image_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (catalog_id) DO UPDATE SET
		    name = excluded.name,
		    summary = excluded.summary,
		    status = excluded.status,
		    premiered = excluded.premiered,
		    ended = excluded.ended,
		    image_url = excluded.image_url,
		    updated_at = excluded.updated_at`,
		show.CatalogID, show.Name, show.Summary, show.Status,
		show.Premiered, show.Ended, show.ImageURL, now)
	if err != nil {
		return models.Show{}, fmt.Errorf("upsert show: %w", err)
	}

	var showID int64
	if err := tx.QueryRow(`SELECT id FROM shows WHERE catalog_id = ?`, show.CatalogID).Scan(&showID); err != nil {
		return models.Show{}, fmt.Errorf("resolve show id: %w", err)
	}

	for _, ep := range episodes {
		_, err = tx.Exec(`
			INSERT INTO episodes (catalog_id, show_id, season, number, name, summary, airdate, airtime, runtime)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (catalog_id) DO UPDATE SET
			    show_id = excluded.show_id,
			    season = excluded.season,
			    number = excluded.number,
			    name = excluded.name,
			    summary = excluded.summary,
			    airdate = excluded.airdate,
			    airtime = excluded.airtime,
			    runtime = excluded.runtime`,
			ep.CatalogID, showID, ep.Season, ep.Number, ep.Name,
			ep.Summary, ep.AirDate, ep.AirTime, ep.Runtime)
		if err != nil {
			return models.Show{}, fmt.Errorf("upsert episode %d: %w", ep.CatalogID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Show{}, fmt.Errorf("commit upsert: %w", err)
	}

	show.ID = showID
	show.UpdatedAt = now
	return show, nil
}

// GetShow returns a show by its local id.
func (s *Store) GetShow(id int64) (models.Show, error) {
	return s.scanShow(s.db.QueryRow(`
		SELECT id, catalog_id, name, summary, status, premiered, ended, image_url, updated_at
		FROM shows WHERE id = ?`, id))
}

// GetShowByCatalogID returns a show by its external catalog id.
func (s *Store) GetShowByCatalogID(catalogID int64) (models.Show, error) {
	return s.scanShow(s.db.QueryRow(`
		SELECT id, catalog_id, name, summary, status, premiered, ended, image_url, updated_at
		FROM shows WHERE catalog_id = ?`, catalogID))
}

// Episodes returns a show's episodes ordered by season and number.
func (s *Store) Episodes(showID int64) ([]models.Episode, error) {
	rows, err := s.db.Query(`
		SELECT id, catalog_id, show_id, season, number, name, summary, airdate, airtime, runtime
		FROM episodes WHERE show_id = ?
		ORDER BY season, number`, showID)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []models.Episode
	for rows.Next() {
		var ep models.Episode
		if err := rows.Scan(&ep.ID, &ep.CatalogID, &ep.ShowID, &ep.Season, &ep.Number,
			&ep.Name, &ep.Summary, &ep.AirDate, &ep.AirTime, &ep.Runtime); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// AllShows returns every show in the catalog, oldest refresh first.
func (s *Store) AllShows() ([]models.Show, error) {
	rows, err := s.db.Query(`
		SELECT id, catalog_id, name, summary, status, premiered, ended, image_url, updated_at
		FROM shows ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("query shows: %w", err)
	}
	defer rows.Close()

	var shows []models.Show
	for rows.Next() {
		var show models.Show
		if err := rows.Scan(&show.ID, &show.CatalogID, &show.Name, &show.Summary, &show.Status,
			&show.Premiered, &show.Ended, &show.ImageURL, &show.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		shows = append(shows, show)
	}
	return shows, rows.Err()
}

func (s *Store) scanShow(row *sql.Row) (models.Show, error) {
	var show models.Show
	err := row.Scan(&show.ID, &show.CatalogID, &show.Name, &show.Summary, &show.Status,
		&show.Premiered, &show.Ended, &show.ImageURL, &show.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Show{}, ErrShowNotFound
	}
	if err != nil {
		return models.Show{}, fmt.Errorf("scan show: %w", err)
	}
	return show, nil
}
