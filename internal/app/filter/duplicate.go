package filter

import (
	"regexp"
	"strings"

	"github.com/osa030/tunetap/internal/domain/track"
)

// DuplicateTrackFilter rejects tracks already in use somewhere in the game.
// Detects:
// - Exact track ID matches
// - Remasters (normalized track name + same primary artist)
// Excludes:
// - Cover songs (same track name but different artist)
type DuplicateTrackFilter struct {
	seen SeenTracks
}

// SeenTracks reports the tracks already claimed by the game
// (timelines, draw pile, current draw).
type SeenTracks interface {
	UsedTracks() []track.Track
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter(seen SeenTracks) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{seen: seen}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Check checks whether the track duplicates one already in use.
func (f *DuplicateTrackFilter) Check(candidate track.Track) Result {
	for _, used := range f.seen.UsedTracks() {
		if used.ID == candidate.ID {
			return Reject("duplicate_track")
		}
		if isRemaster(used, candidate) {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

// isRemaster checks if two tracks are the same song in a different version.
// Cover songs keep the name but change the artist, so both must match.
func isRemaster(a, b track.Track) bool {
	if normalizeTrackName(a.Name) != normalizeTrackName(b.Name) {
		return false
	}
	return isSameArtist(a, b)
}

var remasterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
	regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
	regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
	regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
	regexp.MustCompile(`\s*\(.*?remaster.*?\)`),
	regexp.MustCompile(`\s*\[.*?remaster.*?\]`),
}

var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
	regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
	regexp.MustCompile(`\s*-?\s*live`),             // "- Live"
	regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
	regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
	regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = whitespaceRun.ReplaceAllString(normalized, " ")
	normalized = strings.TrimRight(normalized, " -")

	return normalized
}

// isSameArtist checks if two tracks share the same primary artist.
func isSameArtist(a, b track.Track) bool {
	if len(a.Artists) == 0 || len(b.Artists) == 0 {
		return false
	}
	return strings.EqualFold(a.Artists[0], b.Artists[0])
}
