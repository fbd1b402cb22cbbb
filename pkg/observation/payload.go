package observation

import (
	"encoding/json"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// TextValues walks a nested payload and returns every string leaf, plus
// numbers and booleans rendered as text, in document order. Map keys are
// visited in sorted order so the result is deterministic.
func TextValues(payload any) []string {
	var out []string
	walkText(payload, &out)
	return out
}

func walkText(v any, out *[]string) {
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			*out = append(*out, s)
		}
	case float64:
		*out = append(*out, strconv.FormatFloat(val, 'f', -1, 64))
	case json.Number:
		*out = append(*out, val.String())
	case bool:
		*out = append(*out, strconv.FormatBool(val))
	case map[string]any:
		for _, k := range sortedKeys(val) {
			walkText(val[k], out)
		}
	case []any:
		for _, item := range val {
			walkText(item, out)
		}
	}
}

// RenderPayload returns a payload as display text: strings are trimmed,
// anything else is rendered as compact JSON.
func RenderPayload(payload any) string {
	switch val := payload.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(data)
}

// Messages returns the chat messages held by a payload: the "messages" list
// of an object, a bare list of objects, or a single object.
func Messages(payload any) []map[string]any {
	switch val := payload.(type) {
	case map[string]any:
		if list, ok := val["messages"].([]any); ok {
			return objects(list)
		}
		return []map[string]any{val}
	case []any:
		return objects(val)
	}
	return nil
}

func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
