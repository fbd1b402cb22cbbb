// Package sqlitepath locates the SQLite database used by the sqlite storage
// driver when no path is configured.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolveSQLitePath returns override when set, and otherwise the first
// existing database among, in order, $XDG_DATA_HOME/tracelens/,
// ~/.tracelens/ and the working directory.
func ResolveSQLitePath(override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("could not find tracelens SQLite database; pass --sqlite")
}

func sqliteCandidates() []string {
	candidates := []string{
		"tracelens.db",
		"tracelens.sqlite",
		filepath.Join(".tracelens", "tracelens.db"),
		filepath.Join(".tracelens", "tracelens.sqlite"),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{
			filepath.Join(home, ".tracelens", "tracelens.db"),
			filepath.Join(home, ".tracelens", "tracelens.sqlite"),
		}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "tracelens", "tracelens.db"),
			filepath.Join(xdgHome, "tracelens", "tracelens.sqlite"),
		}, candidates...)
	}

	return candidates
}
