package tracegraph

import (
	"github.com/papercomputeco/tracelens/pkg/observation"
)

// Rule names the resolution rule that produced a parent.
type Rule string

const (
	RuleFirst Rule = "first_observation"

	RuleToolContainerParent     Rule = "tool.container_parent"
	RuleToolRequestingGen       Rule = "tool.requesting_generation"
	RuleToolGenerationParent    Rule = "tool.generation_parent"
	RuleToolPrecedingGeneration Rule = "tool.preceding_generation"
	RuleToolPrecedingNonTool    Rule = "tool.preceding_non_tool"

	RuleContainerRequestingGen       Rule = "container.requesting_generation"
	RuleContainerPrecedingGeneration Rule = "container.preceding_generation"

	RuleModelStepToolParent          Rule = "model_step.tool_parent"
	RuleModelStepPrecedingTool       Rule = "model_step.preceding_tool"
	RuleModelStepPrecedingContainer  Rule = "model_step.preceding_container"
	RuleModelStepPrecedingGeneration Rule = "model_step.preceding_generation"

	RuleRecordedParent Rule = "default.recorded_parent"
	RuleMetadataParent Rule = "default.metadata_parent"
	RulePrevious       Rule = "default.previous"

	RuleCycleBreak Rule = "cycle_break"
)

// ParentMap maps an observation id to its resolved parent id. Observations
// anchored at the synthetic root map to the trace id.
type ParentMap map[string]string

// Resolution is the output of parent resolution.
type Resolution struct {
	RootID  string
	Parents ParentMap
	Rules   map[string]Rule
	Roles   map[string]Role
}

type resolver struct {
	store *observation.Store
	seq   *Sequence
	tools ToolIndex
	roles map[string]Role
}

// Resolve infers one parent per observation, processing observations in
// temporal order. The result is acyclic: every parent chain reaches the root
// in at most seq.Len() steps.
func Resolve(store *observation.Store, seq *Sequence, tools ToolIndex) *Resolution {
	r := &resolver{
		store: store,
		seq:   seq,
		tools: tools,
		roles: make(map[string]Role, seq.Len()),
	}
	for _, obs := range seq.items {
		r.roles[obs.ID] = Classify(obs)
	}

	res := &Resolution{
		RootID:  store.RootID(),
		Parents: make(ParentMap, seq.Len()),
		Rules:   make(map[string]Rule, seq.Len()),
		Roles:   r.roles,
	}

	for i, obs := range seq.items {
		parent, rule := r.resolve(i, obs)
		res.Parents[obs.ID] = parent
		res.Rules[obs.ID] = rule
	}

	breakCycles(res, seq)
	return res
}

func (r *resolver) resolve(i int, obs *observation.Observation) (string, Rule) {
	if i == 0 {
		return r.store.RootID(), RuleFirst
	}

	var (
		parent string
		rule   Rule
	)
	switch r.roles[obs.ID] {
	case RoleTool:
		parent, rule = r.resolveTool(i, obs)
	case RoleToolContainer:
		parent, rule = r.resolveContainer(i, obs)
	case RoleModelStep:
		parent, rule = r.resolveModelStep(i, obs)
	}
	if parent != "" {
		return parent, rule
	}

	return r.resolveDefault(i, obs)
}

func (r *resolver) resolveTool(i int, obs *observation.Observation) (string, Rule) {
	if id := r.candidate(obs, r.isContainer); id != "" {
		return id, RuleToolContainerParent
	}

	if obs.Name != "" {
		if gen := r.requestingGeneration(i, obs.Name); gen != nil {
			return gen.ID, RuleToolRequestingGen
		}
	}

	if id := r.candidate(obs, isGeneration); id != "" {
		return id, RuleToolGenerationParent
	}

	if gen := r.seq.Nearest(i, Backward, isGeneration); gen != nil {
		return gen.ID, RuleToolPrecedingGeneration
	}

	if prev := r.seq.Nearest(i, Backward, notKind(observation.KindTool)); prev != nil {
		return prev.ID, RuleToolPrecedingNonTool
	}

	return "", ""
}

func (r *resolver) resolveContainer(i int, obs *observation.Observation) (string, Rule) {
	child := r.seq.Nearest(i, Forward, func(o *observation.Observation) bool {
		return o.Kind == observation.KindTool && o.Name != "" && o.RecordedParentID == obs.ID
	})
	if child != nil {
		if gen := r.requestingGeneration(i, child.Name); gen != nil {
			return gen.ID, RuleContainerRequestingGen
		}
	}

	if gen := r.seq.Nearest(i, Backward, isGeneration); gen != nil {
		return gen.ID, RuleContainerPrecedingGeneration
	}

	return "", ""
}

func (r *resolver) resolveModelStep(i int, obs *observation.Observation) (string, Rule) {
	keep := func(o *observation.Observation) bool {
		return o.Kind == observation.KindTool || r.isContainer(o)
	}
	if id := r.candidate(obs, keep); id != "" {
		return id, RuleModelStepToolParent
	}

	if tool := r.seq.Nearest(i, Backward, ofKind(observation.KindTool)); tool != nil {
		return tool.ID, RuleModelStepPrecedingTool
	}

	if container := r.seq.Nearest(i, Backward, r.isContainer); container != nil {
		return container.ID, RuleModelStepPrecedingContainer
	}

	if gen := r.seq.Nearest(i, Backward, isGeneration); gen != nil {
		return gen.ID, RuleModelStepPrecedingGeneration
	}

	return "", ""
}

func (r *resolver) resolveDefault(i int, obs *observation.Observation) (string, Rule) {
	if r.anchorable(obs, obs.RecordedParentID) {
		return obs.RecordedParentID, RuleRecordedParent
	}
	if r.anchorable(obs, obs.MetadataParentID) {
		return obs.MetadataParentID, RuleMetadataParent
	}
	return r.seq.At(i - 1).ID, RulePrevious
}

// candidate returns the first recorded or metadata parent of obs that is a
// known observation satisfying pred.
func (r *resolver) candidate(obs *observation.Observation, pred Predicate) string {
	for _, id := range r.store.ParentCandidates(obs.ID) {
		if id == obs.ID {
			continue
		}
		if parent := r.store.Get(id); parent != nil && pred(parent) {
			return id
		}
	}
	return ""
}

func (r *resolver) anchorable(obs *observation.Observation, id string) bool {
	if id == "" || id == obs.ID {
		return false
	}
	return id == r.store.RootID() || r.store.Has(id)
}

func (r *resolver) requestingGeneration(i int, name string) *observation.Observation {
	return r.seq.Nearest(i, Backward, func(o *observation.Observation) bool {
		return isGeneration(o) && r.tools.Requested(o.ID, name)
	})
}

func (r *resolver) isContainer(o *observation.Observation) bool {
	return r.roles[o.ID] == RoleToolContainer
}

// breakCycles re-points, for every parent cycle, the cycle member whose
// parent comes later in temporal order to its immediate predecessor. Scan
// rules only anchor backward, so cycles can only come from kept forward
// pointers; each repair removes one forward edge.
func breakCycles(res *Resolution, seq *Sequence) {
	done := make(map[string]bool, len(res.Parents))

	for _, start := range seq.items {
		for {
			cycle := findCycle(res, start.ID, done)
			if cycle == nil {
				break
			}
			repair(res, seq, cycle)
		}
	}
}

// findCycle follows the parent chain from start. It returns the members of
// the cycle the chain runs into, or nil once the chain reaches the root or an
// already verified node, marking the walked nodes verified.
func findCycle(res *Resolution, start string, done map[string]bool) []string {
	var path []string
	onPath := make(map[string]int)

	for id := start; ; {
		if id == res.RootID || done[id] {
			break
		}
		parent, ok := res.Parents[id]
		if !ok {
			break
		}
		if at, seen := onPath[id]; seen {
			return path[at:]
		}
		onPath[id] = len(path)
		path = append(path, id)
		id = parent
	}

	for _, id := range path {
		done[id] = true
	}
	return nil
}

func repair(res *Resolution, seq *Sequence, cycle []string) {
	victim, victimPos := "", -1
	for _, id := range cycle {
		pos, _ := seq.Position(id)
		parentPos, _ := seq.Position(res.Parents[id])
		if parentPos > pos && (victimPos < 0 || pos < victimPos) {
			victim, victimPos = id, pos
		}
	}

	if victimPos <= 0 {
		if victim == "" {
			victim = cycle[0]
		}
		res.Parents[victim] = res.RootID
	} else {
		res.Parents[victim] = seq.At(victimPos - 1).ID
	}
	res.Rules[victim] = RuleCycleBreak
}
