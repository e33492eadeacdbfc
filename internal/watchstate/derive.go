// Package watchstate turns a show's metadata, its episodes' air dates and a
// profile's watch marks into one canonical watch state. The same code runs
// authoritatively on the server and predictively inside the optimistic
// mirror, so everything here must stay pure: no clock reads, no I/O, the
// reference date is always an explicit argument.
package watchstate

import (
	"strings"
	"time"
)

// State is the derived per-(profile, show) watch state.
type State string

const (
	StateQueued    State = "queued"
	StateWatchNext State = "watch-next"
	StateWatching  State = "watching"
	StateUpToDate  State = "up-to-date"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
)

// StatusOverrideStopped is the only legal non-empty profile override value.
const StatusOverrideStopped = "stopped"

// DateLayout is the calendar date format air dates are stored in. Lexical
// order of these strings equals calendar order.
const DateLayout = "2006-01-02"

// DateOf formats a reference time as the date string passed around as asOf.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// ShowInfo is the slice of show metadata the derivation needs.
type ShowInfo struct {
	Status string `json:"status"`
}

// Episode is a catalog episode with the profile's watched flag applied.
// AirDate is YYYY-MM-DD or empty when unannounced.
type Episode struct {
	ID      int64  `json:"id"`
	Season  int    `json:"season"`
	Number  int    `json:"number"`
	Name    string `json:"name,omitempty"`
	AirDate string `json:"airDate,omitempty"`
	AirTime string `json:"airTime,omitempty"`
	Runtime int    `json:"runtimeMinutes,omitempty"`
	Watched bool   `json:"watched"`
}

// Stats are the aggregate counters reported alongside the state.
type Stats struct {
	TotalCount             int  `json:"totalCount"`
	WatchedCount           int  `json:"watchedCount"`
	ReleasedCount          int  `json:"releasedCount"`
	ReleasedUnwatchedCount int  `json:"releasedUnwatchedCount"`
	HasFuture              bool `json:"hasFuture"`
}

// Result is the full output of one derivation.
type Result struct {
	State       State    `json:"state"`
	NextEpisode *Episode `json:"nextEpisode,omitempty"`
	Stats       Stats    `json:"stats"`
}

// Released reports whether an episode with the given air date has aired on
// or before asOf, compared as calendar dates. A missing air date means not
// released.
func Released(airDate, asOf string) bool {
	return airDate != "" && airDate <= asOf
}

// Derive computes the canonical watch state for one show. It is total: every
// input combination maps to a defined state.
//
// The precedence of the state rules is significant. In particular a season
// that is partially watched yields "watching" even when the watch-next
// condition also holds, and "completed" requires every episode watched,
// including unreleased and undated ones.
func Derive(show ShowInfo, episodes []Episode, statusOverride string, asOf string) Result {
	var stats Stats
	stats.TotalCount = len(episodes)

	type seasonTally struct {
		released int
		watched  int
	}
	seasons := make(map[int]*seasonTally)

	var releasedUnwatched, futureUnwatched []Episode
	for _, ep := range episodes {
		if ep.Watched {
			stats.WatchedCount++
		}
		if Released(ep.AirDate, asOf) {
			stats.ReleasedCount++
			tally := seasons[ep.Season]
			if tally == nil {
				tally = &seasonTally{}
				seasons[ep.Season] = tally
			}
			tally.released++
			if ep.Watched {
				tally.watched++
			} else {
				releasedUnwatched = append(releasedUnwatched, ep)
			}
			continue
		}
		if ep.AirDate != "" {
			stats.HasFuture = true
		}
		if !ep.Watched {
			futureUnwatched = append(futureUnwatched, ep)
		}
	}
	stats.ReleasedUnwatchedCount = len(releasedUnwatched)

	partialSeason := false
	for _, tally := range seasons {
		if tally.released > 0 && tally.watched > 0 && tally.watched < tally.released {
			partialSeason = true
			break
		}
	}

	started := stats.WatchedCount > 0
	hasReleased := stats.ReleasedCount > 0
	isEnded := strings.EqualFold(strings.TrimSpace(show.Status), "ended")
	allReleasedWatched := hasReleased && len(releasedUnwatched) == 0
	allEpisodesWatched := len(episodes) > 0 && stats.WatchedCount == len(episodes)

	var state State
	switch {
	case statusOverride == StatusOverrideStopped:
		state = StateStopped
	case partialSeason:
		state = StateWatching
	case started && len(releasedUnwatched) > 0:
		state = StateWatchNext
	case !started && hasReleased:
		state = StateQueued
	case started && allReleasedWatched && !isEnded:
		state = StateUpToDate
	case isEnded && allEpisodesWatched:
		state = StateCompleted
	case !hasReleased:
		state = StateQueued
	default:
		state = StateUpToDate
	}

	return Result{
		State:       state,
		NextEpisode: nextEpisode(releasedUnwatched, futureUnwatched),
		Stats:       stats,
	}
}

// nextEpisode picks the earliest-airing released-unwatched episode, falling
// back to the earliest unwatched episode that has not aired yet.
func nextEpisode(releasedUnwatched, futureUnwatched []Episode) *Episode {
	if ep := earliest(releasedUnwatched); ep != nil {
		return ep
	}
	return earliest(futureUnwatched)
}

func earliest(episodes []Episode) *Episode {
	if len(episodes) == 0 {
		return nil
	}
	best := episodes[0]
	for _, ep := range episodes[1:] {
		if airsBefore(ep, best) {
			best = ep
		}
	}
	return &best
}

// airsBefore orders by air date string with missing dates first, then by
// season and episode number.
func airsBefore(a, b Episode) bool {
	if a.AirDate != b.AirDate {
		return a.AirDate < b.AirDate
	}
	if a.Season != b.Season {
		return a.Season < b.Season
	}
	return a.Number < b.Number
}
