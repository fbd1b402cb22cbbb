package cliui

import (
	"strings"

	"charm.land/lipgloss/v2/tree"

	"github.com/papercomputeco/tracelens/pkg/analysis"
	"github.com/papercomputeco/tracelens/pkg/observation"
	"github.com/papercomputeco/tracelens/pkg/tracegraph"
)

// RenderGraph renders the reconstructed graph of r as a tree rooted at the
// trace id. Each node shows its name, kind and resolution rule, followed by
// its leak level when above none and its groundedness label when scored.
func RenderGraph(r *analysis.Result) string {
	t := tree.Root(HeaderStyle.Render(r.TraceID)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(DimStyle)

	if r.Graph == nil || r.Graph.Root == nil {
		return t.String()
	}

	for _, child := range r.Graph.Root.Children {
		t.Child(subtree(r, child))
	}
	return t.String()
}

func subtree(r *analysis.Result, n *tracegraph.Node) any {
	label := nodeLabel(r, n)
	if len(n.Children) == 0 {
		return label
	}

	t := tree.Root(label).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(DimStyle)
	for _, child := range n.Children {
		t.Child(subtree(r, child))
	}
	return t
}

func nodeLabel(r *analysis.Result, n *tracegraph.Node) string {
	name := n.ID
	kind := ""
	if n.Observation != nil {
		if n.Observation.Name != "" {
			name = n.Observation.Name
		}
		kind = string(n.Observation.Kind)
	}

	parts := []string{ValueStyle.Render(name)}
	if kind != "" {
		parts = append(parts, KeyStyle.Render(kind))
	}
	parts = append(parts, DimStyle.Render(string(n.Rule)))

	if d := r.Leaks[n.ID]; d.Level > observation.LevelNone {
		parts = append(parts, LevelBadge(d.Level))
	}
	if m, ok := r.Groundedness[n.ID]; ok {
		parts = append(parts, LabelBadge(m.Label))
	}
	if n.ID == r.RootCauseObservationID {
		parts = append(parts, FailMark+" root cause")
	}

	return strings.Join(parts, " ")
}
