package mirror

import (
	"testing"

	"github.com/stretchr/testify/require"

	"showlog/internal/watchstate"
)

const asOf = "2024-06-01"

func twoEpisodeSnapshot() Snapshot {
	return Snapshot{
		ShowID: 10,
		Name:   "Sample Show",
		Show:   watchstate.ShowInfo{Status: "Running"},
		Episodes: []watchstate.Episode{
			{ID: 1, Season: 1, Number: 1, AirDate: "2024-01-01"},
			{ID: 2, Season: 1, Number: 2, AirDate: "2024-01-08"},
		},
	}
}

func TestMirrorPredictsToggle(t *testing.T) {
	m := New()
	m.Seed(twoEpisodeSnapshot())

	seq, predicted, err := m.ToggleEpisode(10, 1, true, asOf)
	require.NoError(t, err)
	require.NotZero(t, seq)
	require.Equal(t, watchstate.StateWatching, predicted.State)
	require.Equal(t, 1, predicted.Stats.WatchedCount)

	// The predicted state is visible before the response arrives.
	current, err := m.State(10, asOf)
	require.NoError(t, err)
	require.Equal(t, watchstate.StateWatching, current.State)
}

func TestMirrorConfirmReplacesBaseline(t *testing.T) {
	m := New()
	m.Seed(twoEpisodeSnapshot())

	seq, _, err := m.ToggleEpisode(10, 1, true, asOf)
	require.NoError(t, err)

	authoritative := twoEpisodeSnapshot()
	authoritative.Episodes[0].Watched = true
	require.NoError(t, m.Resolve(10, seq, true, &authoritative))

	current, err := m.State(10, asOf)
	require.NoError(t, err)
	require.Equal(t, watchstate.StateWatching, current.State)
	require.Equal(t, 1, current.Stats.WatchedCount)
}

func TestMirrorFailureRevertsExactlyAsBefore(t *testing.T) {
	m := New()
	m.Seed(twoEpisodeSnapshot())

	before, err := m.State(10, asOf)
	require.NoError(t, err)

	seq, _, err := m.ToggleEpisode(10, 1, true, asOf)
	require.NoError(t, err)

	require.NoError(t, m.Resolve(10, seq, false, nil))

	after, err := m.State(10, asOf)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestMirrorSecondToggleSeesFirstPrediction(t *testing.T) {
	m := New()
	m.Seed(twoEpisodeSnapshot())

	_, _, err := m.ToggleEpisode(10, 1, true, asOf)
	require.NoError(t, err)

	// Issued before the first response returns: must operate on the latest
	// mirrored snapshot, not the stale pre-optimistic one.
	_, predicted, err := m.ToggleEpisode(10, 2, true, asOf)
	require.NoError(t, err)
	require.Equal(t, 2, predicted.Stats.WatchedCount)
	require.Equal(t, watchstate.StateUpToDate, predicted.State)
}

func TestMirrorFailedRollbackKeepsLaterPrediction(t *testing.T) {
	m := New()
	m.Seed(twoEpisodeSnapshot())

	first, _, err := m.ToggleEpisode(10, 1, true, asOf)
	require.NoError(t, err)
	_, _, err = m.ToggleEpisode(10, 2, true, asOf)
	require.NoError(t, err)

	// The first mutation fails; the second's prediction must survive.
	require.NoError(t, m.Resolve(10, first, false, nil))

	current, err := m.State(10, asOf)
	require.NoError(t, err)
	require.Equal(t, 1, current.Stats.WatchedCount)

	var second watchstate.Episode
	for _, ep := range currentEpisodes(t, m) {
		if ep.ID == 2 {
			second = ep
		}
	}
	require.True(t, second.Watched)
}

func TestMirrorStaleResponseDoesNotClobberNewerState(t *testing.T) {
	m := New()
	m.Seed(twoEpisodeSnapshot())

	first, _, err := m.ToggleEpisode(10, 1, true, asOf)
	require.NoError(t, err)
	_, _, err = m.ToggleEpisode(10, 2, true, asOf)
	require.NoError(t, err)

	// The first mutation's response arrives after the second was issued.
	// Its authoritative snapshot only reflects the first toggle; the second
	// prediction must be replayed on top.
	authoritative := twoEpisodeSnapshot()
	authoritative.Episodes[0].Watched = true
	require.NoError(t, m.Resolve(10, first, true, &authoritative))

	current, err := m.State(10, asOf)
	require.NoError(t, err)
	require.Equal(t, 2, current.Stats.WatchedCount)
}

func TestMirrorIndependentShows(t *testing.T) {
	m := New()
	m.Seed(twoEpisodeSnapshot())

	other := twoEpisodeSnapshot()
	other.ShowID = 20
	other.Name = "Other Show"
	m.Seed(other)

	seq, _, err := m.ToggleEpisode(10, 1, true, asOf)
	require.NoError(t, err)
	_, _, err = m.ToggleEpisode(20, 1, true, asOf)
	require.NoError(t, err)

	// Rolling back show 10 leaves show 20's prediction untouched.
	require.NoError(t, m.Resolve(10, seq, false, nil))

	otherState, err := m.State(20, asOf)
	require.NoError(t, err)
	require.Equal(t, 1, otherState.Stats.WatchedCount)
}

func TestMirrorCategoriesMatchServerBucketing(t *testing.T) {
	m := New()
	m.Seed(twoEpisodeSnapshot())

	categories := m.Categories(asOf)
	require.Len(t, categories, 6)
	require.Equal(t, watchstate.StateQueued, categories[2].ID)
	require.Len(t, categories[2].Shows, 1)

	_, _, err := m.ToggleEpisode(10, 1, true, asOf)
	require.NoError(t, err)

	// The card moves buckets immediately on the predicted state.
	categories = m.Categories(asOf)
	require.Empty(t, categories[2].Shows)
	require.Len(t, categories[1].Shows, 1) // watching
}

func TestMirrorErrors(t *testing.T) {
	m := New()

	_, _, err := m.ToggleEpisode(99, 1, true, asOf)
	require.ErrorIs(t, err, ErrShowNotMirrored)

	m.Seed(twoEpisodeSnapshot())
	_, _, err = m.ToggleEpisode(10, 42, true, asOf)
	require.ErrorIs(t, err, ErrEpisodeUnknown)

	require.ErrorIs(t, m.Resolve(99, 1, true, nil), ErrShowNotMirrored)
}

func currentEpisodes(t *testing.T, m *Mirror) []watchstate.Episode {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shows[10].view().Episodes
}
