package tracegraph

import (
	"encoding/json"

	"github.com/papercomputeco/tracelens/pkg/observation"
)

// EdgeKind distinguishes primary parent edges from synthesized ones.
type EdgeKind string

const (
	// EdgePrimary links a resolved parent to its child.
	EdgePrimary EdgeKind = "primary"

	// EdgeFanIn links a tool result to the model step that consumed it when
	// the tool is not that step's resolved parent.
	EdgeFanIn EdgeKind = "fan_in"
)

// Edge is a directed edge from From to To.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// Graph is the reconstructed single-rooted causal graph of one trace. The
// tree formed by Parent/Children is the primary structure; Edges adds fan-in
// edges on top of it.
type Graph struct {
	// Root is the synthetic root node carrying the trace id.
	Root *Node

	Edges []Edge

	// index provides O(1) lookup by observation id. The root is never
	// indexed, so an observation sharing the trace id cannot shadow it.
	index map[string]*Node

	// order holds observation ids in temporal order
	order []string
}

// Node wraps an observation with its place in the reconstructed graph.
type Node struct {
	ID string

	// Observation is nil for the root.
	Observation *observation.Observation

	Depth int
	Role  Role
	Rule  Rule

	// Parent is nil for the root.
	Parent *Node

	// Children are kept in temporal order.
	Children []*Node
}

// Assemble builds the graph for a resolution. Every observation in seq must
// have a parent in res.
func Assemble(seq *Sequence, res *Resolution, depths DepthMap) *Graph {
	root := &Node{ID: res.RootID, Children: make([]*Node, 0)}
	g := &Graph{
		Root:  root,
		Edges: make([]Edge, 0, seq.Len()),
		index: make(map[string]*Node, seq.Len()),
		order: seq.IDs(),
	}

	for _, obs := range seq.items {
		g.index[obs.ID] = &Node{
			ID:          obs.ID,
			Observation: obs,
			Depth:       depths[obs.ID],
			Role:        res.Roles[obs.ID],
			Rule:        res.Rules[obs.ID],
			Children:    make([]*Node, 0),
		}
	}

	for _, obs := range seq.items {
		node := g.index[obs.ID]
		parent := root
		if pid := res.Parents[obs.ID]; pid != res.RootID {
			if p, ok := g.index[pid]; ok {
				parent = p
			}
		}
		node.Parent = parent
		parent.Children = append(parent.Children, node)
		g.Edges = append(g.Edges, Edge{From: parent.ID, To: node.ID, Kind: EdgePrimary})
	}

	g.Edges = append(g.Edges, fanInEdges(seq, res)...)
	return g
}

// fanInEdges links every TOOL between two model turns to the later turn. A
// model turn is a GENERATION or a model step.
func fanInEdges(seq *Sequence, res *Resolution) []Edge {
	var (
		edges   []Edge
		pending []string
	)

	for _, obs := range seq.items {
		switch {
		case obs.Kind == observation.KindTool:
			pending = append(pending, obs.ID)
		case isGeneration(obs) || res.Roles[obs.ID] == RoleModelStep:
			for _, tool := range pending {
				if res.Parents[obs.ID] == tool {
					continue
				}
				edges = append(edges, Edge{From: tool, To: obs.ID, Kind: EdgeFanIn})
			}
			pending = pending[:0]
		}
	}

	return edges
}

// Reconstruct runs every stage on a store and returns the assembled graph.
func Reconstruct(store *observation.Store) *Graph {
	seq := Order(store)
	res := Resolve(store, seq, BuildToolIndex(seq))
	return Assemble(seq, res, Depths(res.Parents, res.RootID))
}

// Get returns the node with the given id, or nil if not found. The trace id
// names the root unless an observation carries the same id.
func (g *Graph) Get(id string) *Node {
	if node, ok := g.index[id]; ok {
		return node
	}
	if g.Root != nil && id == g.Root.ID {
		return g.Root
	}
	return nil
}

// Size returns the number of observation nodes, excluding the root.
func (g *Graph) Size() int {
	return len(g.order)
}

// Nodes returns the observation nodes in temporal order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.index[id])
	}
	return nodes
}

// Leaves returns all observation nodes without children, in temporal order.
func (g *Graph) Leaves() []*Node {
	leaves := []*Node{}
	for _, node := range g.Nodes() {
		if len(node.Children) == 0 {
			leaves = append(leaves, node)
		}
	}
	return leaves
}

// Walk traverses the graph depth-first from the root, calling fn for each
// node. If fn returns false, traversal stops. If fn errors, traversal stops
// and the error is propagated.
func (g *Graph) Walk(fn func(*Node) (bool, error)) error {
	if g.Root == nil {
		return nil
	}

	_, err := walkNode(g.Root, fn)
	return err
}

func walkNode(node *Node, fn func(*Node) (bool, error)) (bool, error) {
	ok, err := fn(node)
	if !ok || err != nil {
		return false, err
	}

	for _, child := range node.Children {
		ok, err := walkNode(child, fn)
		if !ok || err != nil {
			return false, err
		}
	}

	return true, nil
}

// Ancestors returns the path from the given node up to the root, node first
// and root last. Returns nil if the id is not found.
func (g *Graph) Ancestors(id string) []*Node {
	node := g.Get(id)
	if node == nil {
		return nil
	}

	ancestors := []*Node{}
	for current := node; current != nil; current = current.Parent {
		ancestors = append(ancestors, current)
	}
	return ancestors
}

// Descendants returns every node below the given node in depth-first order.
// Returns nil if the id is not found.
func (g *Graph) Descendants(id string) []*Node {
	node := g.Get(id)
	if node == nil {
		return nil
	}

	descendants := []*Node{}
	for _, child := range node.Children {
		_, _ = walkNode(child, func(n *Node) (bool, error) {
			descendants = append(descendants, n)
			return true, nil
		})
	}
	return descendants
}

// BranchPoints returns all nodes with more than one child, root included,
// root first and then in temporal order.
func (g *Graph) BranchPoints() []*Node {
	points := []*Node{}
	if len(g.Root.Children) > 1 {
		points = append(points, g.Root)
	}
	for _, node := range g.Nodes() {
		if len(node.Children) > 1 {
			points = append(points, node)
		}
	}
	return points
}

// FanIn returns the synthesized fan-in edges.
func (g *Graph) FanIn() []Edge {
	edges := []Edge{}
	for _, e := range g.Edges {
		if e.Kind == EdgeFanIn {
			edges = append(edges, e)
		}
	}
	return edges
}

type nodeJSON struct {
	ID       string           `json:"id"`
	Kind     observation.Kind `json:"kind"`
	Name     string           `json:"name,omitempty"`
	ParentID string           `json:"parent_id"`
	Depth    int              `json:"depth"`
	Role     string           `json:"role"`
	Rule     Rule             `json:"rule"`
}

type graphJSON struct {
	RootID string     `json:"root_id"`
	Nodes  []nodeJSON `json:"nodes"`
	Edges  []Edge     `json:"edges"`
}

// MarshalJSON flattens the graph into nodes in temporal order plus edges.
func (g *Graph) MarshalJSON() ([]byte, error) {
	out := graphJSON{
		RootID: g.Root.ID,
		Nodes:  make([]nodeJSON, 0, len(g.order)),
		Edges:  g.Edges,
	}
	for _, n := range g.Nodes() {
		out.Nodes = append(out.Nodes, nodeJSON{
			ID:       n.ID,
			Kind:     n.Observation.Kind,
			Name:     n.Observation.Name,
			ParentID: n.Parent.ID,
			Depth:    n.Depth,
			Role:     n.Role.String(),
			Rule:     n.Rule,
		})
	}
	return json.Marshal(out)
}
