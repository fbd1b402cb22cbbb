package leak

import (
	"encoding/json"
	"strings"

	"github.com/papercomputeco/tracelens/pkg/observation"
)

// JudgeKey is the metadata key holding an external leak judge verdict.
const JudgeKey = "leak_judge"

// SourceLeakageProbe tags risk raised by a leakage probe summary.
const SourceLeakageProbe = "leakage_probe"

var (
	finalAnswerKeys = []string{"final_answer", "finalAnswer"}
	probeKeys       = []string{"leakage_probe", "leak_probe"}
	probeLeakKeys   = []string{"leaks", "num_leaks"}
	probeTotalKeys  = []string{"total", "num_attacks"}
)

// Verdict is an externally supplied leak judgement.
type Verdict struct {
	Risk    observation.Level `json:"risk"`
	Sources []string          `json:"sources"`
}

// JudgeVerdict returns the verdict embedded in an observation's metadata
// under "leak_judge", if any. Unknown risk strings read as none and blank
// sources are dropped.
func JudgeVerdict(obs *observation.Observation) (Verdict, bool) {
	raw, ok := obs.Metadata[JudgeKey].(map[string]any)
	if !ok {
		return Verdict{}, false
	}

	var v Verdict
	if risk, ok := raw["risk"].(string); ok {
		v.Risk = observation.ParseLevel(risk)
	}
	if list, ok := raw["sources"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				v.Sources = append(v.Sources, strings.TrimSpace(s))
			}
		}
	}
	return v, true
}

// FinalAnswer returns the final answer recorded in an observation's metadata.
func FinalAnswer(obs *observation.Observation) string {
	return obs.MetadataString(finalAnswerKeys...)
}

// ProbeLeaked reports whether a leakage probe summary in the metadata records
// at least one leak out of a positive number of simulated attacks.
func ProbeLeaked(obs *observation.Observation) bool {
	for _, key := range probeKeys {
		probe, ok := obs.Metadata[key].(map[string]any)
		if !ok {
			continue
		}
		leaks, lok := firstCount(probe, probeLeakKeys)
		total, tok := firstCount(probe, probeTotalKeys)
		return lok && tok && total > 0 && leaks > 0
	}
	return false
}

func firstCount(m map[string]any, keys []string) (int64, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			if v == float64(int64(v)) {
				return int64(v), true
			}
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n, true
			}
		case int:
			return int64(v), true
		}
	}
	return 0, false
}

func textCandidates(obs *observation.Observation) []string {
	candidates := observation.TextValues(obs.Output)
	if answer := FinalAnswer(obs); answer != "" {
		candidates = append(candidates, answer)
	}
	return candidates
}
