// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/osa030/tunetap/internal/domain/track"

// Playlist represents an ingested Spotify playlist.
type Playlist struct {
	ID     string        // Spotify Playlist ID
	Name   string        // Playlist name
	URL    string        // Spotify URL
	Tracks []track.Track // Tracks in the playlist
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// PlayableTracks returns the tracks ready to enter a game.
func (p *Playlist) PlayableTracks() []track.Track {
	playable := make([]track.Track, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		if t.IsPlayable() {
			playable = append(playable, t)
		}
	}
	return playable
}

// NeedingResolution returns the tracks awaiting a release-date lookup.
func (p *Playlist) NeedingResolution() []track.Track {
	pending := make([]track.Track, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		if t.NeedsReleaseDate() {
			pending = append(pending, t)
		}
	}
	return pending
}
