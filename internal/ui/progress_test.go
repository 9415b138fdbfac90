package ui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/edm/internal/crawl"
)

// fakeClock advances only when told.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestProgressTracker_Speed(t *testing.T) {
	// Given: a tracker on a controlled clock
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := newProgressTracker(clock.Now)

	// When: 10 files are seen in the first second and 30 in the next
	clock.Advance(time.Second)
	p.Update(ProgressEvent{Stage: StageCrawling, Counts: Counts{Indexed: 10}})
	clock.Advance(time.Second)
	p.Update(ProgressEvent{Stage: StageCrawling, Counts: Counts{Indexed: 35, Skipped: 5}, CurrentFile: "b.txt"})

	// Then: current, smoothed average and peak reflect the samples
	stats := p.Stats()
	assert.Equal(t, StageCrawling, stats.Stage)
	assert.Equal(t, 40, stats.Counts.Seen())
	assert.Equal(t, "b.txt", stats.CurrentFile)
	assert.InDelta(t, 30.0, stats.Speed.Current, 0.001)
	assert.InDelta(t, 14.0, stats.Speed.Avg, 0.001)
	assert.InDelta(t, 30.0, stats.Speed.Peak, 0.001)
	assert.Equal(t, 2*time.Second, stats.Elapsed)
}

func TestProgressTracker_SamplesAreThrottled(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	p := newProgressTracker(clock.Now)

	clock.Advance(100 * time.Millisecond)
	p.Update(ProgressEvent{Stage: StageCrawling, Counts: Counts{Indexed: 5}})

	assert.Zero(t, p.Stats().Speed.Current)
	assert.Equal(t, 5, p.Stats().Counts.Indexed)
}

func TestProgressTracker_Errors(t *testing.T) {
	p := NewProgressTracker()

	p.AddError(ErrorEvent{File: "a", Err: errors.New("boom")})
	p.AddError(ErrorEvent{File: "b", Err: errors.New("large"), IsWarn: true})

	stats := p.Stats()
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 1, stats.WarnCount)
	require.Len(t, p.Errors(), 1)
	assert.Equal(t, "a", p.Errors()[0].File)
}

// countingRenderer keeps the largest counts seen and tallies calls.
type countingRenderer struct {
	mu      sync.Mutex
	max     Counts
	updates int
	errors  int
}

func (r *countingRenderer) Start(context.Context) error { return nil }
func (r *countingRenderer) Complete(CompletionStats) {}
func (r *countingRenderer) Stop() error { return nil }

func (r *countingRenderer) UpdateProgress(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if ev.Counts.Seen() > r.max.Seen() {
		r.max = ev.Counts
	}
}

func (r *countingRenderer) AddError(ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

func TestCrawlProgress_TotalsEvents(t *testing.T) {
	// Given: a renderer fed by crawl events from many goroutines
	r := &countingRenderer{}
	progress := CrawlProgress(r)

	kinds := []crawl.EventKind{crawl.EventIndexed, crawl.EventIndexed, crawl.EventSkipped, crawl.EventExcluded, crawl.EventFailed}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, k := range kinds {
			wg.Add(1)
			go func(k crawl.EventKind) {
				defer wg.Done()
				ev := crawl.Event{Kind: k, Path: "/root/f"}
				if k == crawl.EventFailed {
					ev.Err = errors.New("read failed")
				}
				progress(ev)
			}(k)
		}
	}
	wg.Wait()

	// Then: the largest update carries the full totals
	assert.Equal(t, Counts{Indexed: 40, Skipped: 20, Excluded: 20, Failed: 20}, r.max)
	assert.Equal(t, 100, r.updates)
	assert.Equal(t, 20, r.errors)
}
