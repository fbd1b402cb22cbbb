package analysis

import (
	"github.com/papercomputeco/tracelens/pkg/groundedness"
	"github.com/papercomputeco/tracelens/pkg/leak"
)

// ObservationReport flattens everything known about one observation.
type ObservationReport struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Name     string `json:"name,omitempty"`
	ParentID string `json:"parent_id"`
	Depth    int    `json:"depth"`
	Role     string `json:"role"`
	Rule     string `json:"rule"`

	Leak         leak.Detection       `json:"leak"`
	Groundedness *groundedness.Metric `json:"groundedness,omitempty"`
}

// Report returns one row per observation in temporal order.
func (r *Result) Report() []ObservationReport {
	rows := make([]ObservationReport, 0, len(r.Order))
	for _, id := range r.Order {
		row := ObservationReport{
			ID:       id,
			ParentID: r.Parents[id],
			Depth:    r.Depths[id],
			Leak:     r.Leaks[id],
		}

		if r.Graph != nil {
			if node := r.Graph.Get(id); node != nil && node.Observation != nil {
				row.Kind = string(node.Observation.Kind)
				row.Name = node.Observation.Name
				row.Role = node.Role.String()
				row.Rule = string(node.Rule)
			}
		}

		if m, ok := r.Groundedness[id]; ok {
			row.Groundedness = &m
		}

		rows = append(rows, row)
	}
	return rows
}
