// Package sqlitepath locates an existing thinkstream SQLite database when
// none is configured.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no override, environment variable or
// existing database file names a SQLite path.
var ErrNotFound = errors.New("could not find thinkstream SQLite database; pass --sqlite")

func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("THINKSTREAM_SQLITE")); envPath != "" {
		return envPath, nil
	}
	if envPath := strings.TrimSpace(os.Getenv("THINKSTREAM_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", ErrNotFound
}

func sqliteCandidates() []string {
	candidates := []string{
		"thinkstream.db",
		"thinkstream.sqlite",
		filepath.Join(".thinkstream", "thinkstream.db"),
		filepath.Join(".thinkstream", "thinkstream.sqlite"),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{
			filepath.Join(home, ".thinkstream", "thinkstream.db"),
			filepath.Join(home, ".thinkstream", "thinkstream.sqlite"),
		}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "thinkstream", "thinkstream.db"),
			filepath.Join(xdgHome, "thinkstream", "thinkstream.sqlite"),
		}, candidates...)
	}

	return candidates
}
