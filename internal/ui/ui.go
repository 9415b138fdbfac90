// Package ui renders crawl progress and query results on the terminal.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a phase of a synchronized crawl.
type Stage int

const (
	// StageSnapshot lists the documents already indexed for the source.
	StageSnapshot Stage = iota
	// StageCrawling walks the tree and upserts documents.
	StageCrawling
	// StageSweeping deletes documents not seen during the crawl.
	StageSweeping
	// StageComplete indicates the run finished.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageSnapshot:
		return "Snapshot"
	case StageCrawling:
		return "Crawl"
	case StageSweeping:
		return "Sweep"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short tag used by plain output.
func (s Stage) Icon() string {
	switch s {
	case StageSnapshot:
		return "SNAP"
	case StageCrawling:
		return "CRAWL"
	case StageSweeping:
		return "SWEEP"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// Counts are the running totals of a crawl.
type Counts struct {
	Indexed  int
	Skipped  int
	Excluded int
	Failed   int
}

// Seen is the number of paths handled so far.
func (c Counts) Seen() int {
	return c.Indexed + c.Skipped + c.Excluded + c.Failed
}

// ProgressEvent is a progress update.
type ProgressEvent struct {
	Stage       Stage
	Counts      Counts
	CurrentFile string
	Message     string
}

// ErrorEvent is a per-file failure or warning.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// CompletionStats summarises a finished run.
type CompletionStats struct {
	Source   string
	Counts   Counts
	Deleted  int
	Duration time.Duration
}

// Renderer displays crawl progress.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Root is shown in the TUI header.
	Root string
}

// ConfigOption modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithRoot sets the crawl root shown in the header.
func WithRoot(root string) ConfigOption {
	return func(c *Config) {
		c.Root = root
	}
}

// NewConfig creates a Config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns the TUI renderer for interactive terminals, and the
// plain renderer for pipes, CI, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI reports whether the process runs under a CI system.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
