package transfer

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showlog/internal/database"
	"showlog/models"
	"showlog/services/catalog"
	"showlog/services/tracker"
)

type stubFetcher struct{}

func (stubFetcher) FetchShow(ctx context.Context, catalogID int64) (models.Show, []models.Episode, error) {
	return models.Show{CatalogID: catalogID, Name: "Fetched", Status: "Running"},
		[]models.Episode{{CatalogID: catalogID*100 + 1, Season: 1, Number: 1, AirDate: "2024-01-01"}},
		nil
}

func newTestTransfer(t *testing.T) (*Service, *tracker.Service, *catalog.Store) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "showlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := catalog.NewStore(db)
	trk := tracker.NewService(db, store, stubFetcher{})
	return NewService(trk), trk, store
}

func seedLibrary(t *testing.T, trk *tracker.Service, store *catalog.Store, profileID string) (models.Show, []models.Episode) {
	t.Helper()
	show, err := store.UpsertShow(models.Show{CatalogID: 100, Name: "Tracked Show", Status: "Running"},
		[]models.Episode{
			{CatalogID: 1001, Season: 1, Number: 1, AirDate: "2024-01-01"},
			{CatalogID: 1002, Season: 1, Number: 2, AirDate: "2024-01-08"},
		})
	require.NoError(t, err)

	_, err = trk.AddShow(context.Background(), profileID, 100)
	require.NoError(t, err)

	episodes, err := store.Episodes(show.ID)
	require.NoError(t, err)
	return show, episodes
}

func TestExportImportRoundTrip(t *testing.T) {
	svc, trk, store := newTestTransfer(t)
	_, episodes := seedLibrary(t, trk, store, "source")

	watchedAt := time.Date(2024, 3, 10, 20, 15, 0, 0, time.UTC)
	require.NoError(t, trk.MarkByCatalogID("source", episodes[0].CatalogID, watchedAt))

	doc, err := svc.Export("source")
	require.NoError(t, err)
	assert.Equal(t, DocumentVersion, doc.Version)
	require.Len(t, doc.Shows, 1)
	assert.Equal(t, int64(100), doc.Shows[0].CatalogShowID)
	require.Len(t, doc.Shows[0].WatchedEpisodes, 1)
	require.NotNil(t, doc.Shows[0].WatchedEpisodes[0].WatchedAt)

	// Round-trip through the serialized form into a fresh profile.
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	summary, err := svc.Import(context.Background(), "target", raw)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Shows)
	assert.Equal(t, 1, summary.Episodes)

	reexported, err := svc.Export("target")
	require.NoError(t, err)
	require.Len(t, reexported.Shows, 1)
	require.Len(t, reexported.Shows[0].WatchedEpisodes, 1)

	got := reexported.Shows[0].WatchedEpisodes[0]
	assert.Equal(t, episodes[0].CatalogID, got.CatalogEpisodeID)
	require.NotNil(t, got.WatchedAt)
	assert.True(t, got.WatchedAt.Equal(watchedAt), "watchedAt must survive the round trip")
}

func TestImportBareIDArray(t *testing.T) {
	svc, _, _ := newTestTransfer(t)

	summary, err := svc.Import(context.Background(), "p1", []byte(`[42, 43]`))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Shows)
	assert.Equal(t, 0, summary.Episodes)

	doc, err := svc.Export("p1")
	require.NoError(t, err)
	require.Len(t, doc.Shows, 2)
	assert.Equal(t, "Fetched", doc.Shows[0].Name, "missing shows are fetched from the catalog")
}

func TestImportNewlineDelimitedIDs(t *testing.T) {
	svc, _, _ := newTestTransfer(t)

	summary, err := svc.Import(context.Background(), "p1", []byte("42\n\n  43  \n"))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Shows)
}

func TestImportUnrecognizedPayload(t *testing.T) {
	svc, _, _ := newTestTransfer(t)

	for _, payload := range []string{"", "not json at all", `{"foo": 1}`, `["a", "b"]`} {
		_, err := svc.Import(context.Background(), "p1", []byte(payload))
		assert.ErrorIs(t, err, ErrUnrecognizedPayload, "payload %q", payload)
	}
}

func TestImportSkipsUnknownEpisodes(t *testing.T) {
	svc, trk, store := newTestTransfer(t)
	seedLibrary(t, trk, store, "source")

	at := time.Date(2024, 3, 10, 20, 15, 0, 0, time.UTC)
	doc := models.ExportDocument{
		Version: DocumentVersion,
		Shows: []models.ExportShow{{
			CatalogShowID: 100,
			WatchedEpisodes: []models.ExportEpisode{
				{CatalogEpisodeID: 1001, WatchedAt: &at},
				{CatalogEpisodeID: 999999, WatchedAt: &at}, // not in the catalog
			},
		}},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	summary, err := svc.Import(context.Background(), "target", raw)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Shows)
	assert.Equal(t, 1, summary.Episodes, "unknown episodes are skipped, not fatal")
}
