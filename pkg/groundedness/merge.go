package groundedness

import "slices"

// tier orders labels by severity. Unknown labels rank below ENTAILED.
func tier(l Label) int {
	switch l {
	case LabelContradicted:
		return 3
	case LabelNeutral:
		return 2
	case LabelEntailed:
		return 1
	default:
		return 0
	}
}

// score is the within-tier ranking key: the contradiction score for
// CONTRADICTED and NEUTRAL, the entailment score for ENTAILED.
func (m Metric) score() float64 {
	if m.Label == LabelEntailed {
		return m.Entailment
	}
	return m.Contradiction
}

// MoreSevere reports whether m outranks other. Equal rank is not more severe.
func (m Metric) MoreSevere(other Metric) bool {
	if t, o := tier(m.Label), tier(other.Label); t != o {
		return t > o
	}
	return m.score() > other.score()
}

// Dominant returns the most severe metric of a list, keeping the first-seen
// metric on ties. It reports false for an empty list.
func Dominant(metrics []Metric) (Metric, bool) {
	if len(metrics) == 0 {
		return Metric{}, false
	}

	best := metrics[0]
	for _, m := range metrics[1:] {
		if m.MoreSevere(best) {
			best = m
		}
	}
	return best, true
}

// Merge groups metrics by observation id and selects the dominant metric of
// each. Metrics without an observation id are ignored. Observations without
// metrics are absent from the result.
func Merge(metrics []Metric) map[string]Metric {
	grouped := make(map[string][]Metric)
	for _, m := range metrics {
		if m.ObservationID == "" {
			continue
		}
		grouped[m.ObservationID] = append(grouped[m.ObservationID], m)
	}

	out := make(map[string]Metric, len(grouped))
	for id, list := range grouped {
		if best, ok := Dominant(list); ok {
			out[id] = best
		}
	}
	return out
}

// RootCause returns the observation id of the first contradicted
// groundedness_with_evidence metric, or "" if there is none.
func RootCause(metrics []Metric) string {
	for _, m := range metrics {
		if m.Metric == MetricGroundednessWithEvidence && m.Label == LabelContradicted && m.ObservationID != "" {
			return m.ObservationID
		}
	}
	return ""
}

// Contradicted returns the ids of observations whose dominant metric is
// CONTRADICTED, sorted.
func Contradicted(dominant map[string]Metric) []string {
	ids := []string{}
	for id, m := range dominant {
		if m.Label == LabelContradicted {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
