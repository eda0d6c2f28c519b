// Package track provides the Track domain entity.
package track

import (
	"strconv"
	"strings"
)

// Status represents whether a playable audio source was located upstream.
type Status string

const (
	StatusFound   Status = "found"
	StatusMissing Status = "missing"
)

// Track represents a candidate game track.
// Release dates come from the metadata resolver and may be missing until resolved.
type Track struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Artists          []string `json:"artists"` // Primary artist is first
	AudioURL         string   `json:"audioUrl,omitempty"`
	Status           Status   `json:"status"`
	FirstReleaseDate string   `json:"firstReleaseDate,omitempty"` // "YYYY", "YYYY-MM" or "YYYY-MM-DD"
	CoverImage       string   `json:"coverImage,omitempty"`
}

// PrimaryArtist returns the first artist, or "" if none.
func (t *Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// IsPlayable reports whether the track can be used in a game:
// audio was found and the first release date is known.
func (t *Track) IsPlayable() bool {
	return t.Status == StatusFound && t.AudioURL != "" && t.FirstReleaseDate != ""
}

// NeedsReleaseDate reports whether the track should be sent to the resolver:
// audio was found but the release date is still unknown.
func (t *Track) NeedsReleaseDate() bool {
	return t.Status == StatusFound && t.AudioURL != "" && t.FirstReleaseDate == "" && len(t.Artists) > 0
}

// ReleaseYear extracts the year from FirstReleaseDate.
// Returns false if the date is absent or malformed.
func (t *Track) ReleaseYear() (int, bool) {
	return YearOf(t.FirstReleaseDate)
}

// YearOf extracts the year component of a release date string.
func YearOf(date string) (int, bool) {
	if date == "" {
		return 0, false
	}
	head, _, _ := strings.Cut(date, "-")
	year, err := strconv.Atoi(head)
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}
