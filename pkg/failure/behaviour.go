package failure

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/tracelens/pkg/observation"
	"github.com/papercomputeco/tracelens/pkg/utils"
)

// loopTextLimit bounds repeated text quoted in a description.
const loopTextLimit = 160

func (d *Detector) detectBehaviour(observations []*observation.Observation) []Failure {
	if len(observations) == 0 {
		return nil
	}

	var (
		failures []Failure
		all      = ids(observations)
		answered = hasFinalAnswer(observations)
	)

	if elapsed := span(observations); elapsed > d.timeout && !answered {
		severity := observation.LevelMedium
		if elapsed > 2*d.timeout {
			severity = observation.LevelHigh
		}
		failures = append(failures, Failure{
			Code:     CodeTimeout,
			Severity: severity,
			Description: fmt.Sprintf("Trace duration %.1fs exceeded timeout threshold (%.0fs) without a final answer.",
				elapsed.Seconds(), d.timeout.Seconds()),
			ObservationIDs: all,
		})
	}

	calls := newGroups()
	errs := newGroups()
	for _, call := range tools(observations) {
		calls.add(call.Name, inputKey(call.Input), call.ID)
		if msg := toolError(call); msg != "" {
			errs.add(call.Name, msg, call.ID)
		}
	}

	for _, grp := range calls.list {
		if len(grp.ids) < d.loopMin {
			continue
		}
		failures = append(failures, Failure{
			Code:     CodeToolLoop,
			Severity: observation.LevelMedium,
			Description: fmt.Sprintf("Identical tool call to %s repeated %d times without evident progress.",
				orUnknown(grp.tool), len(grp.ids)),
			ObservationIDs: grp.ids,
		})
	}

	thoughts := newGroups()
	for _, obs := range observations {
		if text := strings.Join(strings.Fields(strings.ToLower(modelText(obs))), " "); text != "" {
			thoughts.add("", text, obs.ID)
		}
	}
	for _, grp := range thoughts.list {
		if len(grp.ids) < d.loopMin {
			continue
		}
		failures = append(failures, Failure{
			Code:     CodeThoughtLoop,
			Severity: observation.LevelMedium,
			Description: fmt.Sprintf("Identical model output/thought repeated %d times: %s",
				len(grp.ids), utils.Truncate(grp.value, loopTextLimit)),
			ObservationIDs: grp.ids,
		})
	}

	repeatedErrors := false
	for _, grp := range errs.list {
		if len(grp.ids) >= d.repeatedError {
			repeatedErrors = true
		}
		if len(grp.ids) < d.loopMin {
			continue
		}
		failures = append(failures, Failure{
			Code:     CodeErrorLoop,
			Severity: observation.LevelHigh,
			Description: fmt.Sprintf("Repeated tool errors for %s: '%s' occurred %d times.",
				orUnknown(grp.tool), utils.Truncate(grp.value, loopTextLimit), len(grp.ids)),
			ObservationIDs: grp.ids,
		})
	}

	if !answered {
		failures = append(failures, Failure{
			Code:           CodeNoFinalAnswer,
			Severity:       observation.LevelMedium,
			Description:    "Trace completed without a final answer.",
			ObservationIDs: all,
		})

		if repeatedErrors {
			failures = append(failures, Failure{
				Code:           CodeStuckInvalidParams,
				Severity:       observation.LevelHigh,
				Description:    "Agent repeatedly called tools with invalid parameters and never produced a final answer.",
				ObservationIDs: all,
			})
		}
	}

	return failures
}
