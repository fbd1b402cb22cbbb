package tracegraph

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

// ToolIndex maps a GENERATION id to the tool names its output requested.
type ToolIndex map[string][]string

// BuildToolIndex walks the output of every GENERATION in the sequence.
func BuildToolIndex(seq *Sequence) ToolIndex {
	index := make(ToolIndex)
	for _, obs := range seq.items {
		if !isGeneration(obs) {
			continue
		}
		if names := ToolNames(obs.Output); len(names) > 0 {
			index[obs.ID] = names
		}
	}
	return index
}

// Requested reports whether the generation asked for the named tool.
func (ix ToolIndex) Requested(generationID, name string) bool {
	return slices.Contains(ix[generationID], name)
}

// ToolNames collects, in document order without duplicates, every tool name
// referenced by a payload: entries of a "tool_calls" array carrying a name
// (directly or under "function"), and any object with type "tool" and a name.
// JSON encoded strings are decoded and walked; undecodable or malformed
// fragments are skipped.
func ToolNames(payload any) []string {
	w := &toolWalker{seen: make(map[string]struct{})}
	w.walk(payload)
	return w.names
}

type toolWalker struct {
	names []string
	seen  map[string]struct{}
}

func (w *toolWalker) add(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if _, ok := w.seen[name]; ok {
		return
	}
	w.seen[name] = struct{}{}
	w.names = append(w.names, name)
}

func (w *toolWalker) walk(v any) {
	switch val := v.(type) {
	case map[string]any:
		if calls, ok := val["tool_calls"].([]any); ok {
			for _, call := range calls {
				w.addCall(call)
			}
		}
		if t, _ := val["type"].(string); t == "tool" {
			if name, ok := val["name"].(string); ok {
				w.add(name)
			}
		}
		for _, k := range slices.Sorted(maps.Keys(val)) {
			w.walk(val[k])
		}
	case []any:
		for _, item := range val {
			w.walk(item)
		}
	case string:
		s := strings.TrimSpace(val)
		if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
			return
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return
		}
		w.walk(decoded)
	}
}

func (w *toolWalker) addCall(call any) {
	m, ok := call.(map[string]any)
	if !ok {
		return
	}
	if name, ok := m["name"].(string); ok {
		w.add(name)
		return
	}
	if fn, ok := m["function"].(map[string]any); ok {
		if name, ok := fn["name"].(string); ok {
			w.add(name)
		}
	}
}
