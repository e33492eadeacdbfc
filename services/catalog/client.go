package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"showlog/models"
)

// ErrCatalogUnavailable wraps failures talking to the external catalog
// service. Callers surface it; nothing here retries beyond the inline
// attempts below.
var ErrCatalogUnavailable = errors.New("catalog service unavailable")

// DefaultBaseURL points at the public TVMaze-compatible API.
const DefaultBaseURL = "https://api.tvmaze.com"

// Client fetches show and episode metadata from the external catalog.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string, httpc *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, httpc: httpc}
}

type apiShow struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Premiered string `json:"premiered"`
	Ended     string `json:"ended"`
	Summary   string `json:"summary"`
	Image     *struct {
		Medium   string `json:"medium"`
		Original string `json:"original"`
	} `json:"image"`
	Embedded struct {
		Episodes []apiEpisode `json:"episodes"`
	} `json:"_embedded"`
}

type apiEpisode struct {
	ID      int64  `json:"id"`
	Season  int    `json:"season"`
	Number  int    `json:"number"`
	Name    string `json:"name"`
	AirDate string `json:"airdate"`
	AirTime string `json:"airtime"`
	Runtime int    `json:"runtime"`
	Summary string `json:"summary"`
}

// FetchShow retrieves one show with its full episode list. Transient
// failures are retried with backoff; HTTP 4xx responses are not.
func (c *Client) FetchShow(ctx context.Context, catalogID int64) (models.Show, []models.Episode, error) {
	url := fmt.Sprintf("%s/shows/%d?embed=episodes", c.baseURL, catalogID)

	var payload apiShow
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Unrecoverable(fmt.Errorf("catalog returned %s", resp.Status))
			}
			if resp.StatusCode >= 300 {
				return fmt.Errorf("catalog returned %s", resp.Status)
			}

			return json.NewDecoder(resp.Body).Decode(&payload)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return models.Show{}, nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	show := models.Show{
		CatalogID: payload.ID,
		Name:      payload.Name,
		Summary:   payload.Summary,
		Status:    payload.Status,
		Premiered: payload.Premiered,
		Ended:     payload.Ended,
	}
	if payload.Image != nil {
		show.ImageURL = payload.Image.Medium
		if show.ImageURL == "" {
			show.ImageURL = payload.Image.Original
		}
	}

	episodes := make([]models.Episode, 0, len(payload.Embedded.Episodes))
	for _, ep := range payload.Embedded.Episodes {
		episodes = append(episodes, models.Episode{
			CatalogID: ep.ID,
			Season:    ep.Season,
			Number:    ep.Number,
			Name:      ep.Name,
			Summary:   ep.Summary,
			AirDate:   strings.TrimSpace(ep.AirDate),
			AirTime:   strings.TrimSpace(ep.AirTime),
			Runtime:   ep.Runtime,
		})
	}

	return show, episodes, nil
}
