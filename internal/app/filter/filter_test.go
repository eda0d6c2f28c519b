package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/tunetap/internal/domain/track"
)

type staticSeen struct {
	tracks []track.Track
}

func (s *staticSeen) UsedTracks() []track.Track {
	return s.tracks
}

func playableTrack(id, name, artist string) track.Track {
	return track.Track{
		ID:               id,
		Name:             name,
		Artists:          []string{artist},
		AudioURL:         "https://example.com/" + id + ".mp3",
		Status:           track.StatusFound,
		FirstReleaseDate: "1994-08-29",
	}
}

func TestPlayableFilter(t *testing.T) {
	f := NewPlayableFilter()

	tests := []struct {
		name     string
		track    track.Track
		eligible bool
		code     string
	}{
		{
			name:     "playable track",
			track:    playableTrack("1", "Live Forever", "Oasis"),
			eligible: true,
		},
		{
			name: "missing audio",
			track: track.Track{
				ID:               "2",
				Status:           track.StatusMissing,
				FirstReleaseDate: "1994-08-29",
			},
			eligible: false,
			code:     "not_playable",
		},
		{
			name: "missing release date",
			track: track.Track{
				ID:       "3",
				Status:   track.StatusFound,
				AudioURL: "https://example.com/3.mp3",
			},
			eligible: false,
			code:     "not_playable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(tt.track)
			assert.Equal(t, tt.eligible, result.Eligible)
			assert.Equal(t, tt.code, result.Code)
		})
	}
}

func TestDuplicateTrackFilter(t *testing.T) {
	seen := &staticSeen{tracks: []track.Track{
		playableTrack("used-1", "Wonderwall", "Oasis"),
		playableTrack("used-2", "One More Time", "Daft Punk"),
	}}
	f := NewDuplicateTrackFilter(seen)

	tests := []struct {
		name      string
		candidate track.Track
		eligible  bool
	}{
		{
			name:      "fresh track",
			candidate: playableTrack("new-1", "Supersonic", "Oasis"),
			eligible:  true,
		},
		{
			name:      "exact ID match",
			candidate: playableTrack("used-1", "Wonderwall", "Oasis"),
			eligible:  false,
		},
		{
			name:      "remaster of a used track",
			candidate: playableTrack("new-2", "Wonderwall - 2014 Remaster", "Oasis"),
			eligible:  false,
		},
		{
			name:      "cover by another artist is allowed",
			candidate: playableTrack("new-3", "Wonderwall", "Ryan Adams"),
			eligible:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(tt.candidate)
			assert.Equal(t, tt.eligible, result.Eligible)
		})
	}
}

func TestNormalizeTrackName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain name", input: "Wonderwall", expected: "wonderwall"},
		{name: "dash remaster", input: "Wonderwall - 2014 Remaster", expected: "wonderwall"},
		{name: "paren remaster", input: "Wonderwall (Remastered 2014)", expected: "wonderwall"},
		{name: "radio edit", input: "One More Time - Radio Edit", expected: "one more time"},
		{name: "single version", input: "Hey Jude (Single Version)", expected: "hey jude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeTrackName(tt.input))
		})
	}
}

func TestChain_Execute(t *testing.T) {
	seen := &staticSeen{tracks: []track.Track{
		playableTrack("used-1", "Wonderwall", "Oasis"),
	}}
	chain := NewChain(NewPlayableFilter(), NewDuplicateTrackFilter(seen))

	assert.True(t, chain.Execute(playableTrack("new-1", "Supersonic", "Oasis")).Eligible)

	result := chain.Execute(track.Track{ID: "new-2", Status: track.StatusMissing})
	assert.False(t, result.Eligible)
	assert.Equal(t, "not_playable", result.Code)

	result = chain.Execute(playableTrack("used-1", "Wonderwall", "Oasis"))
	assert.False(t, result.Eligible)
	assert.Equal(t, "duplicate_track", result.Code)
}

func TestChain_Apply(t *testing.T) {
	chain := NewChain(NewPlayableFilter())

	in := []track.Track{
		playableTrack("1", "Live Forever", "Oasis"),
		{ID: "2", Status: track.StatusMissing},
		playableTrack("3", "Around the World", "Daft Punk"),
	}

	out := chain.Apply(in)

	ids := make([]string, 0, len(out))
	for _, trk := range out {
		ids = append(ids, trk.ID)
	}
	assert.Equal(t, []string{"1", "3"}, ids)
}
