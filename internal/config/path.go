// Package config resolves configured file paths and their defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultDatabasePath is where the SQLite database lives when no
// database.path is configured: $HOME/.local/share/gap/gap.db. Without a
// resolvable home directory it falls back to the working directory.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "gap.db"
	}
	return filepath.Join(home, ".local", "share", "gap", "gap.db")
}

// DatabasePath resolves a configured database path, expanding ~ and
// environment variables, or returns the default when unset.
func DatabasePath(configured string) string {
	if strings.TrimSpace(configured) == "" {
		return DefaultDatabasePath()
	}
	return ExpandPath(configured)
}

// ExpandPath expands a leading ~ and any $VAR references in a path.
func ExpandPath(path string) string {
	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
