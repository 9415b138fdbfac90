package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per update, for pipes and CI logs.
type PlainRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
//
//	[CRAWL] 12 indexed, 1 skipped, 0 excluded, 0 failed - reports/q1.pdf
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := event.Message
	if msg == "" {
		msg = event.CurrentFile
	}

	if event.Stage == StageCrawling {
		c := event.Counts
		_, _ = fmt.Fprintf(r.out, "[%s] %d indexed, %d skipped, %d excluded, %d failed - %s\n",
			event.Stage.Icon(), c.Indexed, c.Skipped, c.Excluded, c.Failed, msg)
		return
	}
	if msg != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.File, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := stats.Counts
	_, _ = fmt.Fprintf(r.out, "Complete: %s: %d indexed, %d skipped, %d excluded, %d deleted in %s",
		stats.Source, c.Indexed, c.Skipped, c.Excluded, stats.Deleted, stats.Duration.Round(100*time.Millisecond))
	if c.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d errors)", c.Failed)
	}
	_, _ = fmt.Fprintln(r.out)
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
