// Package transfer exports a profile's library to the portable document
// format and imports it back, keyed entirely by stable catalog ids so the
// data survives across installations with different internal row ids.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"showlog/models"
	"showlog/services/tracker"
)

// ErrUnrecognizedPayload is returned when an import body matches none of the
// accepted shapes.
var ErrUnrecognizedPayload = errors.New("unrecognized import payload")

// DocumentVersion is the current export document version.
const DocumentVersion = 1

// Service drives export and import on top of the tracker.
type Service struct {
	tracker *tracker.Service
	now     func() time.Time
}

func NewService(trk *tracker.Service) *Service {
	return &Service{tracker: trk, now: time.Now}
}

// Export builds the portable document for one profile.
func (s *Service) Export(profileID string) (models.ExportDocument, error) {
	links, err := s.tracker.Links(profileID)
	if err != nil {
		return models.ExportDocument{}, err
	}

	doc := models.ExportDocument{
		Version:    DocumentVersion,
		ExportedAt: s.now().UTC(),
		Shows:      make([]models.ExportShow, 0, len(links)),
	}

	for _, link := range links {
		marks, err := s.tracker.Marks(profileID, link.Show.ID)
		if err != nil {
			return models.ExportDocument{}, err
		}

		watched := make([]models.ExportEpisode, 0, len(marks))
		for _, mark := range marks {
			ep := models.ExportEpisode{CatalogEpisodeID: mark.EpisodeCatalogID}
			if !mark.WatchedAt.IsZero() {
				at := mark.WatchedAt.UTC()
				ep.WatchedAt = &at
			}
			watched = append(watched, ep)
		}

		exported := models.ExportShow{
			CatalogShowID:   link.Show.CatalogID,
			Name:            link.Show.Name,
			WatchedEpisodes: watched,
		}
		if !link.AddedAt.IsZero() {
			at := link.AddedAt.UTC()
			exported.AddedAt = &at
		}

		doc.Shows = append(doc.Shows, exported)
	}

	return doc, nil
}

// Import applies a payload to the profile. Three shapes are accepted: the
// export document, a JSON array of bare catalog show ids, or a
// newline-delimited list of catalog show ids. Shows missing from the local
// catalog are fetched; one show's failure aborts nothing else.
func (s *Service) Import(ctx context.Context, profileID string, payload []byte) (models.ImportSummary, error) {
	doc, err := parsePayload(payload)
	if err != nil {
		return models.ImportSummary{}, err
	}

	var summary models.ImportSummary
	var failures []string

	for _, show := range doc.Shows {
		addedAt := s.now().UTC()
		if show.AddedAt != nil {
			addedAt = show.AddedAt.UTC()
		}

		if _, err := s.tracker.AddShowAt(ctx, profileID, show.CatalogShowID, addedAt); err != nil {
			failures = append(failures, fmt.Sprintf("show %d: %v", show.CatalogShowID, err))
			continue
		}
		summary.Shows++

		for _, ep := range show.WatchedEpisodes {
			watchedAt := s.now().UTC()
			if ep.WatchedAt != nil {
				watchedAt = ep.WatchedAt.UTC()
			}
			if err := s.tracker.MarkByCatalogID(profileID, ep.CatalogEpisodeID, watchedAt); err != nil {
				failures = append(failures, fmt.Sprintf("episode %d: %v", ep.CatalogEpisodeID, err))
				continue
			}
			summary.Episodes++
		}
	}

	if len(failures) > 0 && summary.Shows == 0 && summary.Episodes == 0 {
		return summary, fmt.Errorf("import applied nothing: %s", strings.Join(failures, "; "))
	}

	return summary, nil
}

// parsePayload normalizes the three accepted input shapes into one document.
func parsePayload(payload []byte) (models.ExportDocument, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return models.ExportDocument{}, ErrUnrecognizedPayload
	}

	if trimmed[0] == '{' {
		var doc models.ExportDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil || len(doc.Shows) == 0 {
			return models.ExportDocument{}, ErrUnrecognizedPayload
		}
		return doc, nil
	}

	if trimmed[0] == '[' {
		var ids []int64
		if err := json.Unmarshal(trimmed, &ids); err != nil {
			return models.ExportDocument{}, ErrUnrecognizedPayload
		}
		return documentFromIDs(ids)
	}

	// Fall back to one catalog id per line.
	var ids []int64
	for _, line := range strings.Split(string(trimmed), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return models.ExportDocument{}, ErrUnrecognizedPayload
		}
		ids = append(ids, id)
	}
	return documentFromIDs(ids)
}

func documentFromIDs(ids []int64) (models.ExportDocument, error) {
	if len(ids) == 0 {
		return models.ExportDocument{}, ErrUnrecognizedPayload
	}

	doc := models.ExportDocument{Version: DocumentVersion}
	for _, id := range ids {
		doc.Shows = append(doc.Shows, models.ExportShow{CatalogShowID: id})
	}
	return doc, nil
}
