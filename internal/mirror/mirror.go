// Package mirror keeps a client-side predictive copy of per-show state. After
// a mutation request is sent and before the authoritative response returns,
// the mirror applies the same derivation as the server to a local snapshot so
// the UI can move the show immediately. Authoritative responses replace the
// snapshot; failed mutations are rolled back without disturbing later
// predictions.
package mirror

import (
	"errors"
	"sync"

	"showlog/internal/watchstate"
)

var (
	ErrShowNotMirrored = errors.New("show is not mirrored")
	ErrEpisodeUnknown  = errors.New("episode is not in the mirrored snapshot")
)

// Snapshot is the locally held copy of one show's raw facts: everything the
// derivation function needs, nothing derived.
type Snapshot struct {
	ShowID         int64
	Name           string
	ImageURL       string
	Show           watchstate.ShowInfo
	StatusOverride string
	Episodes       []watchstate.Episode
}

func (s Snapshot) clone() Snapshot {
	episodes := make([]watchstate.Episode, len(s.Episodes))
	copy(episodes, s.Episodes)
	s.Episodes = episodes
	return s
}

// mutation is one in-flight predicted change, replayable over any baseline.
type mutation struct {
	seq   uint64
	apply func(*Snapshot)
}

type entry struct {
	baseline Snapshot
	pending  []mutation
}

// view is the baseline with every in-flight mutation replayed in issuance
// order.
func (e *entry) view() Snapshot {
	snap := e.baseline.clone()
	for _, m := range e.pending {
		m.apply(&snap)
	}
	return snap
}

// Mirror holds predictive snapshots for the shows a client is displaying.
// Mutations on one show are sequenced with a monotonic token so that a stale
// response can never overwrite state predicted by a later mutation.
type Mirror struct {
	mu    sync.Mutex
	seq   uint64
	shows map[int64]*entry
}

func New() *Mirror {
	return &Mirror{shows: make(map[int64]*entry)}
}

// Seed installs an authoritative snapshot for a show, discarding any pending
// predictions for it.
func (m *Mirror) Seed(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shows[snap.ShowID] = &entry{baseline: snap.clone()}
}

// Forget drops a show from the mirror entirely.
func (m *Mirror) Forget(showID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.shows, showID)
}

// ToggleEpisode predicts the effect of a single-episode toggle. It operates
// on the latest mirrored view, not the last authoritative snapshot, so a
// second toggle issued before the first resolves sees the first's effect.
// The returned token identifies the in-flight mutation for Resolve.
func (m *Mirror) ToggleEpisode(showID, episodeID int64, watched bool, asOf string) (uint64, watchstate.Result, error) {
	return m.push(showID, asOf, func(snap *Snapshot) {
		for i := range snap.Episodes {
			if snap.Episodes[i].ID == episodeID {
				snap.Episodes[i].Watched = watched
				return
			}
		}
	}, func(snap Snapshot) error {
		for _, ep := range snap.Episodes {
			if ep.ID == episodeID {
				return nil
			}
		}
		return ErrEpisodeUnknown
	})
}

// ToggleSeason predicts a whole-season toggle.
func (m *Mirror) ToggleSeason(showID int64, season int, watched bool, asOf string) (uint64, watchstate.Result, error) {
	return m.push(showID, asOf, func(snap *Snapshot) {
		for i := range snap.Episodes {
			if snap.Episodes[i].Season == season {
				snap.Episodes[i].Watched = watched
			}
		}
	}, nil)
}

// SetStatusOverride predicts an override change.
func (m *Mirror) SetStatusOverride(showID int64, override string, asOf string) (uint64, watchstate.Result, error) {
	return m.push(showID, asOf, func(snap *Snapshot) {
		snap.StatusOverride = override
	}, nil)
}

func (m *Mirror) push(showID int64, asOf string, apply func(*Snapshot), check func(Snapshot) error) (uint64, watchstate.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.shows[showID]
	if !ok {
		return 0, watchstate.Result{}, ErrShowNotMirrored
	}

	if check != nil {
		if err := check(e.view()); err != nil {
			return 0, watchstate.Result{}, err
		}
	}

	m.seq++
	e.pending = append(e.pending, mutation{seq: m.seq, apply: apply})

	return m.seq, deriveSnapshot(e.view(), asOf), nil
}

// Resolve settles an in-flight mutation. On success the authoritative
// snapshot becomes the new baseline and the resolved mutation (plus any
// earlier ones, already folded into the authoritative state) is dropped;
// mutations issued after it are replayed on top, so a stale response cannot
// clobber newer optimistic state. On failure only the failed mutation is
// removed — unrelated predictions issued in the meantime survive.
func (m *Mirror) Resolve(showID int64, seq uint64, ok bool, authoritative *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, found := m.shows[showID]
	if !found {
		return ErrShowNotMirrored
	}

	if ok {
		if authoritative != nil {
			e.baseline = authoritative.clone()
		}
		kept := e.pending[:0]
		for _, p := range e.pending {
			if p.seq > seq {
				kept = append(kept, p)
			}
		}
		e.pending = kept
		return nil
	}

	kept := e.pending[:0]
	for _, p := range e.pending {
		if p.seq != seq {
			kept = append(kept, p)
		}
	}
	e.pending = kept
	return nil
}

// State returns the current predicted result for one show.
func (m *Mirror) State(showID int64, asOf string) (watchstate.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.shows[showID]
	if !ok {
		return watchstate.Result{}, ErrShowNotMirrored
	}

	return deriveSnapshot(e.view(), asOf), nil
}

// Categories returns the predicted listing buckets across every mirrored
// show, using the same bucketing rule as the server.
func (m *Mirror) Categories(asOf string) []watchstate.Category {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make([]watchstate.ShowState, 0, len(m.shows))
	for _, e := range m.shows {
		snap := e.view()
		result := deriveSnapshot(snap, asOf)
		states = append(states, watchstate.ShowState{
			ShowID:      snap.ShowID,
			Name:        snap.Name,
			ImageURL:    snap.ImageURL,
			State:       result.State,
			NextEpisode: result.NextEpisode,
			Stats:       result.Stats,
		})
	}

	return watchstate.Categorize(states)
}

func deriveSnapshot(snap Snapshot, asOf string) watchstate.Result {
	return watchstate.Derive(snap.Show, snap.Episodes, snap.StatusOverride, asOf)
}
