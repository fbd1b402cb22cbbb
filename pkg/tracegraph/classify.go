package tracegraph

import (
	"strings"

	"github.com/papercomputeco/tracelens/pkg/observation"
)

// NodeMetadataKeys are the metadata keys naming the orchestration node an
// observation ran in, in lookup order.
var NodeMetadataKeys = []string{"langgraph_node", "node"}

// Role is the structural role an observation plays during parent resolution.
type Role int

const (
	RoleOther Role = iota
	RoleTool
	RoleToolContainer
	RoleModelStep
)

func (r Role) String() string {
	switch r {
	case RoleTool:
		return "tool"
	case RoleToolContainer:
		return "tool_container"
	case RoleModelStep:
		return "model_step"
	default:
		return "other"
	}
}

// Classify returns the role of an observation. Roles are checked in a fixed
// order: a TOOL is always RoleTool, and an observation that qualifies as both
// a tool container and a model step is a tool container.
func Classify(obs *observation.Observation) Role {
	switch {
	case obs.Kind == observation.KindTool:
		return RoleTool
	case IsToolContainer(obs):
		return RoleToolContainer
	case IsModelStep(obs):
		return RoleModelStep
	default:
		return RoleOther
	}
}

// IsToolContainer reports whether an observation is an orchestration span
// that wraps tool invocations: a SPAN, AGENT or CHAIN whose name contains
// "tool" or whose node metadata is "tool" or "tools".
func IsToolContainer(obs *observation.Observation) bool {
	switch obs.Kind {
	case observation.KindSpan, observation.KindAgent, observation.KindChain:
	default:
		return false
	}

	if strings.Contains(obs.LowerName(), "tool") {
		return true
	}

	node := nodeName(obs)
	return node == "tools" || node == "tool"
}

// IsModelStep reports whether an observation is a CHAIN wrapping one model
// turn: its name contains "model" or its node metadata is "model".
func IsModelStep(obs *observation.Observation) bool {
	if obs.Kind != observation.KindChain {
		return false
	}

	return strings.Contains(obs.LowerName(), "model") || nodeName(obs) == "model"
}

func isGeneration(obs *observation.Observation) bool {
	return obs.Kind == observation.KindGeneration
}

func nodeName(obs *observation.Observation) string {
	return strings.ToLower(obs.MetadataString(NodeMetadataKeys...))
}
