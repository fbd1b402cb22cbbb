package tracegraph

import "github.com/papercomputeco/tracelens/pkg/observation"

// Direction selects which way Nearest scans a Sequence.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// Predicate reports whether an observation satisfies a scan condition.
type Predicate func(*observation.Observation) bool

// Nearest returns the closest observation to position from, exclusive, in the
// given direction that satisfies pred. All resolution rules scan through
// this helper so they share the same tie-breaking.
func (s *Sequence) Nearest(from int, dir Direction, pred Predicate) *observation.Observation {
	for i := from + int(dir); i >= 0 && i < len(s.items); i += int(dir) {
		if pred(s.items[i]) {
			return s.items[i]
		}
	}
	return nil
}

func ofKind(kind observation.Kind) Predicate {
	return func(o *observation.Observation) bool {
		return o.Kind == kind
	}
}

func notKind(kind observation.Kind) Predicate {
	return func(o *observation.Observation) bool {
		return o.Kind != kind
	}
}
