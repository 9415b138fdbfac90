package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.edm/logs, or a temp directory when home is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".edm", "logs")
	}
	return filepath.Join(home, ".edm", "logs")
}

func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "edm.log")
}

// FindLogFile returns explicit when it exists, otherwise the default log path.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no log file found, run a command with --debug first (expected at %s)", path)
}
