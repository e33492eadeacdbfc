package catalog

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"showlog/internal/database"
	"showlog/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "showlog.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func sampleShow() (models.Show, []models.Episode) {
	show := models.Show{
		CatalogID: 100,
		Name:      "Sample Show",
		Status:    "Running",
		Premiered: "2024-01-01",
	}
	episodes := []models.Episode{
		{CatalogID: 1001, Season: 1, Number: 1, Name: "Pilot", AirDate: "2024-01-01", AirTime: "21:00"},
		{CatalogID: 1002, Season: 1, Number: 2, Name: "Second", AirDate: "2024-01-08", AirTime: "TBD"},
	}
	return show, episodes
}

func TestUpsertShowIsIdempotent(t *testing.T) {
	store := testStore(t)
	show, episodes := sampleShow()

	first, err := store.UpsertShow(show, episodes)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	show.Name = "Sample Show (renamed)"
	second, err := store.UpsertShow(show, episodes)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("upsert created a second row: ids %d and %d", first.ID, second.ID)
	}

	stored, err := store.GetShowByCatalogID(100)
	if err != nil {
		t.Fatalf("get by catalog id failed: %v", err)
	}
	if stored.Name != "Sample Show (renamed)" {
		t.Errorf("name = %q, want updated name", stored.Name)
	}

	eps, err := store.Episodes(first.ID)
	if err != nil {
		t.Fatalf("episodes failed: %v", err)
	}
	if len(eps) != 2 {
		t.Fatalf("expected 2 episodes after re-upsert, got %d", len(eps))
	}
	if eps[1].AirTime != "TBD" {
		t.Errorf("airtime = %q, want the literal TBD preserved", eps[1].AirTime)
	}
}

func TestGetShowNotFound(t *testing.T) {
	store := testStore(t)

	if _, err := store.GetShow(42); err != ErrShowNotFound {
		t.Fatalf("expected ErrShowNotFound, got %v", err)
	}
	if _, err := store.GetShowByCatalogID(42); err != ErrShowNotFound {
		t.Fatalf("expected ErrShowNotFound, got %v", err)
	}
}

type blockingFetcher struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (f *blockingFetcher) FetchShow(ctx context.Context, catalogID int64) (models.Show, []models.Episode, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return models.Show{CatalogID: catalogID, Name: "Refetched"}, nil, nil
}

func TestRefreshUpdatesCatalog(t *testing.T) {
	store := testStore(t)
	show, episodes := sampleShow()
	if _, err := store.UpsertShow(show, episodes); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	fetcher := &blockingFetcher{}
	r := NewRefresher(store, fetcher, time.Hour, 2)

	if !r.Trigger(context.Background()) {
		t.Fatal("expected trigger to run")
	}

	stored, err := store.GetShowByCatalogID(100)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Name != "Refetched" {
		t.Errorf("name = %q, want Refetched", stored.Name)
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	store := testStore(t)
	show, episodes := sampleShow()
	if _, err := store.UpsertShow(show, episodes); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	fetcher := &blockingFetcher{release: make(chan struct{})}
	r := NewRefresher(store, fetcher, time.Hour, 2)

	var firstDone atomic.Bool
	go func() {
		r.Trigger(context.Background())
		firstDone.Store(true)
	}()

	// Wait until the first pass is inside the fetcher.
	deadline := time.After(2 * time.Second)
	for {
		fetcher.mu.Lock()
		started := fetcher.calls > 0
		fetcher.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first pass never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// A trigger during a running pass is dropped, not queued.
	if r.Trigger(context.Background()) {
		t.Fatal("overlapping trigger should have been dropped")
	}

	close(fetcher.release)
	for !firstDone.Load() {
		time.Sleep(5 * time.Millisecond)
	}

	fetcher.mu.Lock()
	calls := fetcher.calls
	fetcher.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one fetch, got %d", calls)
	}
}
