package filter

import (
	"github.com/osa030/tunetap/internal/domain/track"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately when any filter rejects the track.
func (c *Chain) Execute(t track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(t)
		if !result.Eligible {
			return result
		}
	}
	return Accept()
}

// Apply returns the tracks that pass every filter in the chain.
func (c *Chain) Apply(tracks []track.Track) []track.Track {
	eligible := make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		if c.Execute(t).Eligible {
			eligible = append(eligible, t)
		}
	}
	return eligible
}
