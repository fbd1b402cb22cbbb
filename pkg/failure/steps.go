package failure

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/tracelens/pkg/leak"
	"github.com/papercomputeco/tracelens/pkg/narrative"
	"github.com/papercomputeco/tracelens/pkg/observation"
	"github.com/papercomputeco/tracelens/pkg/utils"
)

// errorTextLimit bounds error text used for grouping and descriptions.
const errorTextLimit = 200

// Metadata keys carrying a tool error message.
var errorKeys = []string{"error", "error_message", "status_message", "statusMessage"}

// Output markers treated as a tool error when no error is recorded.
var errorMarkers = []string{"invalid", "unknown", "not found", "error"}

// visibleText returns what an observation showed the user: the message
// content of an AGENT or GENERATION output, else a recorded final answer.
func visibleText(obs *observation.Observation) string {
	if obs.Kind == observation.KindAgent || obs.Kind == observation.KindGeneration {
		if s := narrative.AssistantContent(obs); s != "" {
			return s
		}
	}
	return leak.FinalAnswer(obs)
}

// modelText returns the text a GENERATION produced, falling back to its
// reasoning.
func modelText(obs *observation.Observation) string {
	if obs.Kind != observation.KindGeneration {
		return ""
	}
	if s := narrative.AssistantContent(obs); s != "" {
		return s
	}
	return narrative.ReasoningText(obs)
}

func tools(observations []*observation.Observation) []*observation.Observation {
	var out []*observation.Observation
	for _, obs := range observations {
		if obs.Kind == observation.KindTool {
			out = append(out, obs)
		}
	}
	return out
}

// toolError returns the error a tool observation reported: a recorded error
// message, else the lower-cased start of an output carrying an error marker.
func toolError(obs *observation.Observation) string {
	if s := obs.MetadataString(errorKeys...); s != "" {
		return utils.Truncate(s, errorTextLimit)
	}

	content := strings.ToLower(observation.RenderPayload(obs.Output))
	for _, marker := range errorMarkers {
		if strings.Contains(content, marker) {
			return utils.Truncate(content, errorTextLimit)
		}
	}
	return ""
}

// inputKey renders a tool input as canonical JSON. Object keys are sorted.
func inputKey(input any) string {
	if s, ok := input.(string); ok {
		return s
	}
	data, err := json.Marshal(input)
	if err != nil {
		return fmt.Sprint(input)
	}
	return string(data)
}

func hasFinalAnswer(observations []*observation.Observation) bool {
	if narrative.FinalAnswer(observations) != "" {
		return true
	}
	for _, obs := range observations {
		if leak.FinalAnswer(obs) != "" {
			return true
		}
	}
	return false
}

// span returns the time between the earliest start and the latest start or
// end. Observations without a real timestamp are ignored.
func span(observations []*observation.Observation) time.Duration {
	var first, last time.Time
	for _, obs := range observations {
		if obs.StartTime.Equal(observation.EpochFallback) {
			continue
		}
		end := obs.StartTime
		if obs.EndTime != nil && obs.EndTime.After(end) {
			end = *obs.EndTime
		}
		if first.IsZero() || obs.StartTime.Before(first) {
			first = obs.StartTime
		}
		if end.After(last) {
			last = end
		}
	}
	if first.IsZero() {
		return 0
	}
	return last.Sub(first)
}

func ids(observations []*observation.Observation) []string {
	out := make([]string, len(observations))
	for i, obs := range observations {
		out[i] = obs.ID
	}
	return out
}

func joinOrUnknown(parts []string) string {
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, ", ")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// group collects observation ids sharing a key.
type group struct {
	tool  string
	value string
	ids   []string
}

// groups keeps groups in first-seen order.
type groups struct {
	index map[string]*group
	list  []*group
}

func newGroups() *groups {
	return &groups{index: make(map[string]*group)}
}

func (g *groups) add(tool, value, id string) {
	key := tool + "\x00" + value
	grp, ok := g.index[key]
	if !ok {
		grp = &group{tool: tool, value: value}
		g.index[key] = grp
		g.list = append(g.list, grp)
	}
	grp.ids = append(grp.ids, id)
}
