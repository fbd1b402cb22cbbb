package observation

import (
	"encoding/json"
	"strings"
)

// Level is the four-point ordered scale shared by artefact sensitivity and
// leak risk: none < low < medium < high.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
)

var levelNames = [...]string{"none", "low", "medium", "high"}

func (l Level) String() string {
	if l < LevelNone || l > LevelHigh {
		return levelNames[LevelNone]
	}
	return levelNames[l]
}

// Merge returns the larger of l and other. Merging never decreases a level.
func (l Level) Merge(other Level) Level {
	if other > l {
		return other
	}
	return l
}

// AtLeast reports whether l is at or above other.
func (l Level) AtLeast(other Level) bool {
	return l >= other
}

// ParseLevel maps a level name to a Level. Classification labels used by
// artefact producers (public, internal, sensitive, highly_sensitive) are
// accepted as well. Anything unknown is LevelNone.
func ParseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low", "internal":
		return LevelLow
	case "medium", "sensitive":
		return LevelMedium
	case "high", "highly_sensitive", "highly-sensitive":
		return LevelHigh
	default:
		return LevelNone
	}
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Non-string levels degrade to none rather than failing the record.
		*l = LevelNone
		return nil
	}
	*l = ParseLevel(s)
	return nil
}
