package preflight

import (
	"fmt"
	"syscall"
)

const (
	// MinFileDescriptors is the open file limit below which a crawl is refused.
	MinFileDescriptors = 256

	// RecommendedFileDescriptors leaves room for bleve segments under load.
	RecommendedFileDescriptors = 1024

	// descriptorsPerWorker is the files a crawl worker may hold open at once.
	descriptorsPerWorker = 4
)

// CheckFileDescriptors compares the open file limit with what the index
// and the given number of crawl workers need.
func (c *Checker) CheckFileDescriptors(workers int) CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	recommended := uint64(RecommendedFileDescriptors + workers*descriptorsPerWorker)
	current := uint64(rLimit.Cur)
	result.Message = fmt.Sprintf("%d (recommended: %d)", current, recommended)

	switch {
	case current < MinFileDescriptors:
		result.Status = StatusFail
		result.Details = fmt.Sprintf("run 'ulimit -n %d' before crawling", recommended)
	case current < recommended:
		result.Status = StatusWarn
		result.Details = fmt.Sprintf("run 'ulimit -n %d' or lower crawl.workers", recommended)
	default:
		result.Status = StatusPass
	}
	return result
}
