package watchstate

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// bucketOrder is the fixed category order for the listing view. Callers never
// merge or reorder buckets.
var bucketOrder = []State{
	StateWatchNext,
	StateWatching,
	StateQueued,
	StateUpToDate,
	StateCompleted,
	StateStopped,
}

var bucketLabels = map[State]string{
	StateWatchNext: "Watch Next",
	StateWatching:  "Watching",
	StateQueued:    "Not Started",
	StateUpToDate:  "Up to Date",
	StateCompleted: "Finished",
	StateStopped:   "Stopped",
}

// ShowState pairs a show's display data with its derived result, ready for
// bucketing.
type ShowState struct {
	ShowID      int64    `json:"showId"`
	CatalogID   int64    `json:"catalogId"`
	Name        string   `json:"name"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	State       State    `json:"state"`
	NextEpisode *Episode `json:"nextEpisode,omitempty"`
	Stats       Stats    `json:"stats"`
}

// Category is one display bucket of the listing view.
type Category struct {
	ID    State       `json:"id"`
	Label string      `json:"label"`
	Shows []ShowState `json:"shows"`
}

// Categorize buckets shows by their derived state into the fixed category
// order. Every bucket is present even when empty; shows within a bucket are
// sorted by name ascending.
func Categorize(shows []ShowState) []Category {
	byState := make(map[State][]ShowState, len(bucketOrder))
	for _, show := range shows {
		byState[show.State] = append(byState[show.State], show)
	}

	coll := collate.New(language.English, collate.IgnoreCase)
	categories := make([]Category, 0, len(bucketOrder))
	for _, state := range bucketOrder {
		bucket := byState[state]
		sort.SliceStable(bucket, func(i, j int) bool {
			if c := coll.CompareString(bucket[i].Name, bucket[j].Name); c != 0 {
				return c < 0
			}
			return bucket[i].ShowID < bucket[j].ShowID
		})
		if bucket == nil {
			bucket = []ShowState{}
		}
		categories = append(categories, Category{
			ID:    state,
			Label: bucketLabels[state],
			Shows: bucket,
		})
	}

	return categories
}
