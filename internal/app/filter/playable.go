package filter

import (
	"github.com/osa030/tunetap/internal/domain/track"
)

// PlayableFilter rejects tracks that cannot be used in a game:
// no located audio source or no known release date.
type PlayableFilter struct{}

// NewPlayableFilter creates a new playable filter.
func NewPlayableFilter() *PlayableFilter {
	return &PlayableFilter{}
}

// Name returns the filter name.
func (f *PlayableFilter) Name() string {
	return "playable_filter"
}

// Check checks whether the track is playable.
func (f *PlayableFilter) Check(t track.Track) Result {
	if !t.IsPlayable() {
		return Reject("not_playable")
	}
	return Accept()
}
