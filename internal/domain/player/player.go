// Package player provides the Player domain entity.
package player

import (
	"github.com/osa030/tunetap/internal/domain/track"
)

// Player represents a participant in a game session.
// The timeline holds the tracks the player has placed, ordered by release date.
type Player struct {
	Name     string        `json:"name"`
	Score    int           `json:"score"`
	Timeline []track.Track `json:"timeline"`
}

// New creates a player with an empty timeline.
func New(name string) *Player {
	return &Player{
		Name:     name,
		Timeline: []track.Track{},
	}
}

// InsertAt splices a track into the timeline at the given index.
// Indexes outside the valid range are clamped.
func (p *Player) InsertAt(index int, t track.Track) {
	if index < 0 {
		index = 0
	}
	if index > len(p.Timeline) {
		index = len(p.Timeline)
	}
	p.Timeline = append(p.Timeline, track.Track{})
	copy(p.Timeline[index+1:], p.Timeline[index:])
	p.Timeline[index] = t
}

// AwardPoint increments the player's score by one.
func (p *Player) AwardPoint() {
	p.Score++
}

// ResetScore sets the player's score back to zero.
func (p *Player) ResetScore() {
	p.Score = 0
}
