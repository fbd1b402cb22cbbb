// Package groundedness merges externally computed credibility metrics and
// selects the dominant one per observation.
package groundedness

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Label is the three-way groundedness classification of a metric.
type Label string

const (
	LabelEntailed     Label = "ENTAILED"
	LabelNeutral      Label = "NEUTRAL"
	LabelContradicted Label = "CONTRADICTED"
)

// Metric names produced by the groundedness scorer.
const (
	MetricGroundednessWithEvidence = "groundedness_with_evidence"
	MetricValidityWithQuery        = "validity_with_query"
)

const (
	contradictedThreshold = 0.5
	entailedThreshold     = 0.6
)

// ParseLabel normalizes a label tag. It reports false for unknown tags.
func ParseLabel(raw string) (Label, bool) {
	switch l := Label(strings.ToUpper(strings.TrimSpace(raw))); l {
	case LabelEntailed, LabelNeutral, LabelContradicted:
		return l, true
	default:
		return "", false
	}
}

// LabelFromScores derives a label from NLI probabilities: a contradiction of
// at least 0.5 is CONTRADICTED, otherwise an entailment of at least 0.6 is
// ENTAILED, otherwise NEUTRAL.
func LabelFromScores(contradiction, entailment float64) Label {
	switch {
	case contradiction >= contradictedThreshold:
		return LabelContradicted
	case entailment >= entailedThreshold:
		return LabelEntailed
	default:
		return LabelNeutral
	}
}

// Metric is one externally supplied credibility score for an observation.
type Metric struct {
	ObservationID string  `json:"observation_id"`
	Metric        string  `json:"metric,omitempty"`
	Subject       string  `json:"subject,omitempty"`
	Entailment    float64 `json:"entailment"`
	Contradiction float64 `json:"contradiction"`
	Neutral       float64 `json:"neutral"`
	Label         Label   `json:"label"`
}

type metricJSON struct {
	ObservationID      string   `json:"observation_id"`
	ObservationIDCamel string   `json:"observationId"`
	Metric             string   `json:"metric"`
	Subject            string   `json:"subject"`
	Entailment         *float64 `json:"entailment"`
	Contradiction      *float64 `json:"contradiction"`
	Neutral            *float64 `json:"neutral"`
	Label              string   `json:"label"`
}

// UnmarshalJSON accepts both "observation_id" and "observationId", clamps
// scores into [0, 1], and derives the label from the scores when it is
// missing or unknown. A missing neutral score is the remainder of the other
// two.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var raw metricJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding groundedness metric: %w", err)
	}

	*m = Metric{
		ObservationID: strings.TrimSpace(raw.ObservationID),
		Metric:        strings.TrimSpace(raw.Metric),
		Subject:       strings.TrimSpace(raw.Subject),
		Entailment:    clamp(raw.Entailment),
		Contradiction: clamp(raw.Contradiction),
	}
	if m.ObservationID == "" {
		m.ObservationID = strings.TrimSpace(raw.ObservationIDCamel)
	}

	if raw.Neutral != nil {
		m.Neutral = clamp(raw.Neutral)
	} else {
		m.Neutral = math.Max(0, 1-m.Entailment-m.Contradiction)
	}

	if label, ok := ParseLabel(raw.Label); ok {
		m.Label = label
	} else {
		m.Label = LabelFromScores(m.Contradiction, m.Entailment)
	}

	return nil
}

func clamp(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return math.Max(0, math.Min(1, *v))
}
