// Package config loads and validates the ledger's settings.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultDatabasePath is where the ledger lives when database.path is unset:
// $XDG_DATA_HOME/spice/ledger.db, falling back to ~/.local/share.
func DefaultDatabasePath() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "spice", "ledger.db")
	}
	return "~/.local/share/spice/ledger.db"
}

// ExpandPath resolves a configured database path. A leading ~ becomes the
// home directory and $VAR references are expanded. SQLite's in-memory name
// and file: URIs are returned untouched so their query options survive.
func ExpandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || isSQLiteSpecial(path) {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}

func isSQLiteSpecial(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file:")
}
