package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MarkerFile records the time of the last passed check in the data dir.
const MarkerFile = ".preflight-passed"

// MarkerTTL is how long a passed check is trusted.
const MarkerTTL = 24 * time.Hour

// NeedsCheck reports whether the marker is missing, unreadable or older
// than MarkerTTL.
func NeedsCheck(dataDir string) bool {
	age, ok := markerAge(dataDir)
	return !ok || age > MarkerTTL
}

// MarkPassed writes the marker, creating dataDir when needed.
func MarkPassed(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}
	content := []byte(time.Now().UTC().Format(time.RFC3339))
	return os.WriteFile(filepath.Join(dataDir, MarkerFile), content, 0o644)
}

// ClearMarker forces the checks to run again. A missing marker is fine.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, MarkerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove marker: %w", err)
	}
	return nil
}

// MarkerAge returns the time since the last passed check, or zero.
func MarkerAge(dataDir string) time.Duration {
	age, _ := markerAge(dataDir)
	return age
}

func markerAge(dataDir string) (time.Duration, bool) {
	content, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	if err != nil {
		return 0, false
	}
	t, err := time.Parse(time.RFC3339, string(content))
	if err != nil {
		return 0, false
	}
	return time.Since(t), true
}
