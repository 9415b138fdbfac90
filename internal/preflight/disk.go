package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const (
	// MinDiskSpaceBytes is the free space below which a crawl is refused.
	MinDiskSpaceBytes = 100 * 1024 * 1024

	// LowDiskSpaceBytes is the free space below which a warning is shown.
	LowDiskSpaceBytes = 1024 * 1024 * 1024
)

// CheckDiskSpace checks the free space of the filesystem holding path, or
// of its closest existing parent.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(existingParent(path), &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	available := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free", formatBytes(available))

	switch {
	case available < MinDiskSpaceBytes:
		result.Status = StatusFail
		result.Details = fmt.Sprintf("at least %s is required for the index", formatBytes(MinDiskSpaceBytes))
	case available < LowDiskSpaceBytes:
		result.Status = StatusWarn
		result.Details = "large crawls may fill the disk"
	default:
		result.Status = StatusPass
	}
	return result
}

func existingParent(path string) string {
	p := filepath.Clean(path)
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
