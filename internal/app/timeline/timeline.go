// Package timeline decides whether a proposed track placement on a
// player's chronological timeline is correct. All functions are pure.
package timeline

import (
	"github.com/osa030/tunetap/internal/domain/track"
)

// Kind identifies how the player described the placement.
type Kind string

const (
	// KindBefore places the candidate before a reference card
	// (or before everything when there is no reference).
	KindBefore Kind = "before"
	// KindAfter places the candidate after a reference card
	// (or after everything when there is no reference).
	KindAfter Kind = "after"
	// KindSame asserts the candidate shares a release year with an
	// existing card.
	KindSame Kind = "same"
)

// NoReference marks a before/after placement with no reference card.
const NoReference = -1

// Placement describes the position the player chose.
type Placement struct {
	Kind           Kind
	ReferenceIndex int // card index for before/after, NoReference if none
	ReferenceYear  int // asserted year for same
}

// Result is the outcome of a placement check.
// CorrectPosition is the true chronological insertion index,
// or -1 when it cannot be determined.
type Result struct {
	Correct         bool `json:"correct"`
	CorrectPosition int  `json:"correctPosition"`
}

// ComputePlacement checks the proposed placement of candidate against the
// player's timeline. The timeline must already be sorted non-decreasing by
// release date. A candidate without a release date is always incorrect.
func ComputePlacement(tl []track.Track, candidate track.Track, p Placement) Result {
	if candidate.FirstReleaseDate == "" {
		return Result{Correct: false, CorrectPosition: -1}
	}

	trueIndex := InsertIndex(tl, candidate)

	var targetIndex int
	switch p.Kind {
	case KindBefore:
		if p.ReferenceIndex == NoReference {
			targetIndex = 0
		} else {
			targetIndex = p.ReferenceIndex
		}
	case KindAfter:
		if p.ReferenceIndex == NoReference {
			targetIndex = len(tl)
		} else {
			targetIndex = p.ReferenceIndex + 1
		}
	case KindSame:
		targetIndex = yearInsertIndex(tl, p.ReferenceYear)
	default:
		return Result{Correct: false, CorrectPosition: trueIndex}
	}

	candidateYear, ok := candidate.ReleaseYear()
	if !ok {
		return Result{Correct: false, CorrectPosition: -1}
	}

	var correct bool
	spliceAt := targetIndex
	switch p.Kind {
	case KindSame:
		correct = p.ReferenceYear == candidateYear
		spliceAt = trueIndex
	default:
		correct = targetIndex == trueIndex
		// Same-year ties must be declared explicitly. A neighbor sharing
		// the candidate's year makes an ordinary before/after guess wrong.
		if hasSameYearNeighbor(tl, targetIndex, candidateYear) {
			correct = false
		}
	}

	if correct && !spliceStaysSorted(tl, candidate, spliceAt) {
		correct = false
	}

	return Result{Correct: correct, CorrectPosition: trueIndex}
}

// InsertIndex returns the true chronological insertion index for candidate:
// the index of the first entry whose date strictly exceeds the candidate's.
// Date strings compare lexicographically, which orders ISO dates correctly.
func InsertIndex(tl []track.Track, candidate track.Track) int {
	for i, t := range tl {
		if t.FirstReleaseDate > candidate.FirstReleaseDate {
			return i
		}
	}
	return len(tl)
}

// yearInsertIndex returns the index of the first entry whose year exceeds y.
func yearInsertIndex(tl []track.Track, y int) int {
	for i, t := range tl {
		year, ok := t.ReleaseYear()
		if ok && year > y {
			return i
		}
	}
	return len(tl)
}

// hasSameYearNeighbor reports whether the entry immediately before or after
// the insertion point shares the candidate's release year.
func hasSameYearNeighbor(tl []track.Track, at int, candidateYear int) bool {
	if at > 0 && at-1 < len(tl) {
		if y, ok := tl[at-1].ReleaseYear(); ok && y == candidateYear {
			return true
		}
	}
	if at >= 0 && at < len(tl) {
		if y, ok := tl[at].ReleaseYear(); ok && y == candidateYear {
			return true
		}
	}
	return false
}

// spliceStaysSorted verifies that inserting candidate at the given index
// keeps the timeline sorted non-decreasing by date. Equal dates are fine.
// This catches inconsistent upstream data rather than trusting the indexes.
func spliceStaysSorted(tl []track.Track, candidate track.Track, at int) bool {
	if at < 0 || at > len(tl) {
		return false
	}
	scratch := make([]track.Track, 0, len(tl)+1)
	scratch = append(scratch, tl[:at]...)
	scratch = append(scratch, candidate)
	scratch = append(scratch, tl[at:]...)
	for i := 1; i < len(scratch); i++ {
		if scratch[i-1].FirstReleaseDate > scratch[i].FirstReleaseDate {
			return false
		}
	}
	return true
}
