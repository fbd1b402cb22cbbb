// Package dotdir resolves the .tracelens/ directory holding config.toml and
// local databases.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the tracelens directory.
	dirName = ".tracelens"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .tracelens/ directory.
// Order of precedence is as follows:
//  1. Provided override, created if missing
//  2. Local ./.tracelens/ dir
//  3. Home ~/.tracelens/ dir
//  4. If none found, an empty string
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating tracelens directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if local := filepath.Join(cwd, dirName); isDir(local) {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	if global := filepath.Join(home, dirName); isDir(global) {
		return global, nil
	}

	return "", nil
}

// Init creates a .tracelens/ directory under parent and returns its
// absolute path.
func (m *Manager) Init(parent string) (string, error) {
	dir := filepath.Join(parent, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating tracelens directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
