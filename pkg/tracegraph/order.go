// Package tracegraph reconstructs the causal graph of an agent trace from its
// flat observation list.
//
// Reconstruction runs in fixed stages: temporal ordering, classification,
// tool-name indexing, parent resolution, depth calculation and graph
// assembly. Every stage is a pure function of its inputs.
package tracegraph

import (
	"slices"

	"github.com/papercomputeco/tracelens/pkg/observation"
)

// Sequence is a trace's observations in processing order: ascending start
// time, with input order kept for equal timestamps.
type Sequence struct {
	items    []*observation.Observation
	position map[string]int
}

// Order sorts the observations of a store into a Sequence. Unparsable
// timestamps were already mapped to observation.EpochFallback on decode, so
// they sort first.
func Order(store *observation.Store) *Sequence {
	items := store.All()
	slices.SortStableFunc(items, func(a, b *observation.Observation) int {
		return a.StartTime.Compare(b.StartTime)
	})

	position := make(map[string]int, len(items))
	for i, obs := range items {
		position[obs.ID] = i
	}

	return &Sequence{items: items, position: position}
}

// Len returns the number of observations in the sequence.
func (s *Sequence) Len() int {
	return len(s.items)
}

// At returns the observation at position i.
func (s *Sequence) At(i int) *observation.Observation {
	return s.items[i]
}

// Position returns the processing position of an observation id.
func (s *Sequence) Position(id string) (int, bool) {
	i, ok := s.position[id]
	return i, ok
}

// Observations returns the observations in processing order.
func (s *Sequence) Observations() []*observation.Observation {
	return slices.Clone(s.items)
}

// IDs returns the observation ids in processing order.
func (s *Sequence) IDs() []string {
	ids := make([]string, len(s.items))
	for i, obs := range s.items {
		ids[i] = obs.ID
	}
	return ids
}
