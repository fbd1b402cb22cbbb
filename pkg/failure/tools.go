package failure

import (
	"fmt"
	"slices"
	"strings"

	"github.com/papercomputeco/tracelens/pkg/observation"
)

// intentWindow is how many user-visible outputs are read for intents.
const intentWindow = 3

// Tool input keys naming the entity a call acts on.
var entityKeys = []string{"account_identifier", "account_id", "customer_id"}

func (d *Detector) detectToolMisuse(observations []*observation.Observation) []Failure {
	calls := tools(observations)

	var failures []Failure
	failures = append(failures, wrongEntity(calls)...)
	failures = append(failures, d.wrongTool(observations, calls)...)

	errs := newGroups()
	for _, call := range calls {
		if toolError(call) == "" {
			continue
		}
		errs.add(call.Name, inputKey(call.Input), call.ID)
	}
	for _, grp := range errs.list {
		if len(grp.ids) < d.repeatedError {
			continue
		}
		failures = append(failures, Failure{
			Code:     CodeInvalidParams,
			Severity: observation.LevelHigh,
			Description: fmt.Sprintf("Tool %s was called repeatedly with the same parameters that caused errors (occurrences=%d).",
				orUnknown(grp.tool), len(grp.ids)),
			ObservationIDs: grp.ids,
		})
	}

	return failures
}

// wrongEntity flags a tool called with more than one distinct entity
// identifier.
func wrongEntity(calls []*observation.Observation) []Failure {
	var (
		order    []string
		entities = make(map[string][]string)
		callIDs  = make(map[string][]string)
	)

	for _, call := range calls {
		if call.Name == "" {
			continue
		}
		if _, ok := callIDs[call.Name]; !ok {
			order = append(order, call.Name)
		}
		callIDs[call.Name] = append(callIDs[call.Name], call.ID)

		input, ok := call.Input.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range entityKeys {
			if v, ok := input[key].(string); ok && strings.TrimSpace(v) != "" {
				entities[call.Name] = append(entities[call.Name], strings.TrimSpace(v))
			}
		}
	}

	var failures []Failure
	for _, name := range order {
		distinct := slices.Compact(slices.Sorted(slices.Values(entities[name])))
		if len(distinct) <= 1 {
			continue
		}
		failures = append(failures, Failure{
			Code:           CodeWrongEntity,
			Severity:       observation.LevelMedium,
			Description:    fmt.Sprintf("Tool %s was called with multiple distinct identifiers: %s", name, strings.Join(distinct, ", ")),
			ObservationIDs: callIDs[name],
		})
	}
	return failures
}

// wrongTool flags intents read from the first user-visible outputs whose
// expected tools never ran.
func (d *Detector) wrongTool(observations, calls []*observation.Observation) []Failure {
	if len(d.intents) == 0 {
		return nil
	}

	var texts []string
	for _, obs := range observations {
		if s := visibleText(obs); s != "" {
			texts = append(texts, strings.ToLower(s))
		}
		if len(texts) >= intentWindow {
			break
		}
	}
	if len(texts) == 0 {
		return nil
	}
	blob := strings.Join(texts, "\n")

	used := make(map[string]bool, len(calls))
	for _, call := range calls {
		used[call.Name] = true
	}

	var failures []Failure
	for _, rule := range d.intents {
		if len(rule.Tools) == 0 || !slices.ContainsFunc(rule.Keywords, func(k string) bool {
			return strings.Contains(blob, k)
		}) {
			continue
		}
		if slices.ContainsFunc(rule.Tools, func(t string) bool { return used[t] }) {
			continue
		}
		failures = append(failures, Failure{
			Code:     CodeWrongTool,
			Severity: observation.LevelMedium,
			Description: fmt.Sprintf("User intent appears to be '%s', but none of the expected tools were called: %s.",
				rule.Intent, strings.Join(rule.Tools, ", ")),
			ObservationIDs: ids(calls),
		})
	}
	return failures
}
