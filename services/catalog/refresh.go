package catalog

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"showlog/models"
)

// showFetcher is the slice of Client the refresher needs.
type showFetcher interface {
	FetchShow(ctx context.Context, catalogID int64) (models.Show, []models.Episode, error)
}

// Refresher periodically re-fetches every catalogued show's metadata. A pass
// only touches show and episode rows, never watch marks. Overlapping passes
// are prevented by a non-blocking single-flight flag: a trigger that arrives
// while a pass is running is dropped, not queued.
type Refresher struct {
	store    *Store
	fetcher  showFetcher
	interval time.Duration
	workers  int

	inFlight atomic.Bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRefresher(store *Store, fetcher showFetcher, interval time.Duration, workers int) *Refresher {
	if interval <= 0 {
		interval = 12 * time.Hour
	}
	if workers <= 0 {
		workers = 4
	}
	return &Refresher{store: store, fetcher: fetcher, interval: interval, workers: workers}
}

// Start begins the background refresh loop.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true

	r.wg.Add(1)
	go r.loop(ctx)

	log.Printf("[catalog] refresh loop started, interval %s", r.interval)
}

// Stop halts the loop and waits for an in-progress pass to finish, bounded
// by the provided context.
func (r *Refresher) Stop(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[catalog] refresh loop stopped")
	case <-ctx.Done():
		log.Println("[catalog] refresh loop stopped (timeout)")
	}

	r.running = false
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Trigger(ctx)
		}
	}
}

// Trigger runs one refresh pass. It returns false without doing anything if
// a pass is already in progress.
func (r *Refresher) Trigger(ctx context.Context) bool {
	if !r.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer r.inFlight.Store(false)

	r.refreshAll(ctx)
	return true
}

// refreshAll re-fetches every show. One show's lookup failure is logged and
// skipped; the pass continues and the show is retried on the next run.
func (r *Refresher) refreshAll(ctx context.Context) {
	shows, err := r.store.AllShows()
	if err != nil {
		log.Printf("[catalog] refresh: list shows: %v", err)
		return
	}
	if len(shows) == 0 {
		return
	}

	p := pool.New().WithMaxGoroutines(r.workers)
	for _, show := range shows {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			fetched, episodes, err := r.fetcher.FetchShow(ctx, show.CatalogID)
			if err != nil {
				log.Printf("[catalog] refresh: show %d: %v", show.CatalogID, err)
				return
			}
			if _, err := r.store.UpsertShow(fetched, episodes); err != nil {
				log.Printf("[catalog] refresh: store show %d: %v", show.CatalogID, err)
			}
		})
	}
	p.Wait()

	log.Printf("[catalog] refresh pass finished, %d show(s)", len(shows))
}
