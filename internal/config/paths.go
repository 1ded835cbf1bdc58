package config

import (
	"os"
	"path/filepath"
)

// DataDir returns the root of memex state: $XDG_DATA_HOME/memex, falling
// back to ~/.local/share/memex.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "memex"), nil
}

// ProjectsDir holds one directory per project id.
func ProjectsDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "projects"), nil
}
