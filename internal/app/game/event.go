package game

import (
	"github.com/osa030/tunetap/internal/app/timeline"
	"github.com/osa030/tunetap/internal/domain/track"
)

// EventType represents a game session event type.
type EventType int

const (
	EventTurnStarted      EventType = iota // A new turn began with a drawn track
	EventRoundEnded                        // A placement was resolved
	EventWaitingForTracks                  // Draw pile ran dry mid-game
	EventTracksAdded                       // Newly playable tracks joined the pile
	EventGameEnded                         // Session reached its terminal state
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTurnStarted:
		return "turn_started"
	case EventRoundEnded:
		return "round_ended"
	case EventWaitingForTracks:
		return "waiting_for_tracks"
	case EventTracksAdded:
		return "tracks_added"
	case EventGameEnded:
		return "game_ended"
	default:
		return "unknown"
	}
}

// Event represents a game session event.
type Event struct {
	Type   EventType
	Status Status
	Player string           // Active player's name (empty for some events)
	Track  *track.Track     // Drawn track (nil for some events)
	Result *timeline.Result // Placement outcome (EventRoundEnded only)
}
