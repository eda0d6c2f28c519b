// Package musicbrainz provides a client for the MusicBrainz API.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// Client is a MusicBrainz API client.
//
// MusicBrainz enforces a global one-request-per-second rate policy;
// callers are expected to route lookups through the resolution queue
// rather than calling this client concurrently.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Config represents MusicBrainz client configuration.
type Config struct {
	// UserAgent identifies the application, as the API terms require.
	UserAgent string
}

// searchResponse represents the release-group search response.
type searchResponse struct {
	ReleaseGroups []struct {
		Title            string `json:"title"`
		FirstReleaseDate string `json:"first-release-date"`
	} `json:"release-groups"`
}

// New creates a new MusicBrainz client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, errors.New("musicbrainz user agent is required")
	}

	return &Client{
		baseURL:    defaultBaseURL,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// LookupFirstReleaseDate searches release groups for the earliest known
// release date of (trackName, artistName). Returns an empty date when
// MusicBrainz has no matching release group; that is not an error.
// Reference: https://musicbrainz.org/doc/MusicBrainz_API/Search
func (c *Client) LookupFirstReleaseDate(ctx context.Context, trackName, artistName string) (string, error) {
	if trackName == "" || artistName == "" {
		return "", errors.New("track name and artist name are required")
	}

	query := fmt.Sprintf(`release:"%s" AND artist:"%s"`,
		escapeLucene(trackName), escapeLucene(artistName))

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", "1")
	params.Set("fmt", "json")

	reqURL := c.baseURL + "/release-group?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("musicbrainz API error: status %d", resp.StatusCode)
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", errors.Wrap(err, "failed to parse response")
	}

	if len(response.ReleaseGroups) == 0 || response.ReleaseGroups[0].FirstReleaseDate == "" {
		zlog.Debug().Msgf("musicbrainz: no release date found: %s - %s", artistName, trackName)
		return "", nil
	}

	return response.ReleaseGroups[0].FirstReleaseDate, nil
}

// escapeLucene escapes embedded quotes so user-supplied names cannot
// break out of the quoted query terms.
func escapeLucene(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
