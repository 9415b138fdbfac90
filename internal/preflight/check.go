package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	// StatusPass indicates the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical problem.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status in lower case for JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult is the result of a single check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target describes the edm installation to check.
type Target struct {
	DataDir     string
	IndexPath   string
	CatalogPath string

	// Workers is the crawl worker count the file limit must accommodate.
	Workers int
}

// Checker runs preflight checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the writer used by PrintResults.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a Checker printing to stdout.
func New(opts ...Option) *Checker {
	c := &Checker{output: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against t.
func (c *Checker) RunAll(_ context.Context, t Target) []CheckResult {
	results := []CheckResult{
		c.CheckWritePermissions(t.DataDir),
		c.CheckDiskSpace(t.DataDir),
		c.CheckFileDescriptors(t.Workers),
	}
	if t.IndexPath != "" {
		results = append(results, c.CheckExists("index", t.IndexPath))
	}
	if t.CatalogPath != "" {
		results = append(results, c.CheckExists("catalog", t.CatalogPath))
	}
	return results
}

// HasCriticalFailures reports whether any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus is "failed", "ready_with_warnings" or "ready".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	warned := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			warned = true
		}
	}
	if warned {
		return "ready_with_warnings"
	}
	return "ready"
}

// Failures joins the messages of the critical results.
func (c *Checker) Failures(results []CheckResult) string {
	var msgs []string
	for _, r := range results {
		if r.IsCritical() {
			msgs = append(msgs, r.Name+": "+r.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

// PrintResults prints one line per check and a summary.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "edm system check")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if r.Details != "" && (c.verbose || r.Status != StatusPass) {
			_, _ = fmt.Fprintf(c.output, "       %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))
}

// CheckWritePermissions creates dir when needed and writes a probe file
// into it.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{Name: "data_dir", Required: true}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	probe := filepath.Join(dir, ".edm-preflight")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not writable: %v", dir, err)
		result.Details = "set index.data_dir or --data-dir to a writable directory"
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = dir
	return result
}

// CheckExists warns when path is missing. A missing index or catalog is
// created by the first crawl.
func (c *Checker) CheckExists(name, path string) CheckResult {
	result := CheckResult{Name: name}
	if _, err := os.Stat(path); err != nil {
		result.Status = StatusWarn
		result.Message = "not created yet"
		result.Details = fmt.Sprintf("%s will be created by 'edm crawl'", path)
		return result
	}
	result.Status = StatusPass
	result.Message = path
	return result
}
