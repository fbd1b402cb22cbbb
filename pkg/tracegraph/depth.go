package tracegraph

// DepthMap maps an observation id to its hop count from the trace root.
// Direct children of the root have depth 1.
type DepthMap map[string]int

// Depths computes the depth of every observation in a parent map. A parent
// that is neither the root nor a known observation counts as the root.
func Depths(parents ParentMap, rootID string) DepthMap {
	depths := make(DepthMap, len(parents))
	visiting := make(map[string]bool)

	var depth func(id string) int
	depth = func(id string) int {
		if d, ok := depths[id]; ok {
			return d
		}

		parent := parents[id]
		if parent == rootID || visiting[id] {
			depths[id] = 1
			return 1
		}
		if _, known := parents[parent]; !known {
			depths[id] = 1
			return 1
		}

		visiting[id] = true
		d := depth(parent) + 1
		delete(visiting, id)

		depths[id] = d
		return d
	}

	for id := range parents {
		depth(id)
	}
	return depths
}
