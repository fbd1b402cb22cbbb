package observation

// Store is a read-only, indexed view over one trace's observations.
//
// Records live in an arena in input order and are addressed by id through an
// index. Candidate parent pointers are kept in a separate lookup table so that
// parent resolution can re-point nodes without touching the records.
type Store struct {
	rootID     string
	records    []Observation
	index      map[string]int
	candidates map[string][]string
}

// NewStore builds a Store from a trace. Observations without an id are
// skipped. For duplicate ids the first record wins.
func NewStore(trace *Trace) *Store {
	s := &Store{
		index:      make(map[string]int),
		candidates: make(map[string][]string),
	}

	if trace == nil {
		return s
	}

	s.rootID = trace.ID
	s.records = make([]Observation, 0, len(trace.Observations))

	for _, obs := range trace.Observations {
		if obs.ID == "" {
			continue
		}
		if _, dup := s.index[obs.ID]; dup {
			continue
		}

		s.index[obs.ID] = len(s.records)
		s.records = append(s.records, obs)

		var cands []string
		if obs.RecordedParentID != "" {
			cands = append(cands, obs.RecordedParentID)
		}
		if obs.MetadataParentID != "" && obs.MetadataParentID != obs.RecordedParentID {
			cands = append(cands, obs.MetadataParentID)
		}
		s.candidates[obs.ID] = cands
	}

	return s
}

// RootID returns the id of the trace, used as the synthetic graph root.
func (s *Store) RootID() string {
	return s.rootID
}

// Len returns the number of indexed observations.
func (s *Store) Len() int {
	return len(s.records)
}

// Get returns the observation with the given id, or nil if unknown.
func (s *Store) Get(id string) *Observation {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	return &s.records[i]
}

// Has reports whether id is a known observation.
func (s *Store) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// All returns the observations in input order. The slice elements point into
// the store and must not be modified.
func (s *Store) All() []*Observation {
	all := make([]*Observation, len(s.records))
	for i := range s.records {
		all[i] = &s.records[i]
	}
	return all
}

// ParentCandidates returns the recorded parent id followed by the metadata
// parent id, omitting blanks and duplicates.
func (s *Store) ParentCandidates(id string) []string {
	return s.candidates[id]
}
