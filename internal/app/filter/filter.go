// Package filter provides the eligibility chain that screens candidate
// tracks before they enter a game's draw pile.
package filter

import (
	"github.com/osa030/tunetap/internal/domain/track"
)

// Result represents the result of a filter check.
type Result struct {
	Eligible bool
	Code     string // e.g., "not_playable", "duplicate_track"
}

// Accept returns an eligible result.
func Accept() Result {
	return Result{Eligible: true}
}

// Reject returns an ineligible result with the given code.
func Reject(code string) Result {
	return Result{Eligible: false, Code: code}
}

// Filter is the interface for track eligibility filters.
type Filter interface {
	// Name returns the filter name.
	Name() string
	// Check performs the eligibility check.
	Check(t track.Track) Result
}
