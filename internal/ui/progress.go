package ui

import (
	"sync"
	"time"

	"github.com/Aman-CERP/edm/internal/crawl"
)

// speedSampleInterval is the minimum gap between throughput samples.
const speedSampleInterval = 500 * time.Millisecond

// ProgressTracker accumulates crawl state for the TUI. It is safe for
// concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	counts      Counts
	currentFile string
	startTime   time.Time
	errors      []ErrorEvent
	warnings    []ErrorEvent

	lastSeen      int
	lastSampledAt time.Time
	speed         float64
	avgSpeed      float64
	peakSpeed     float64
	samples       int
	sparkline     *Sparkline

	now func() time.Time
}

// SpeedStats are files-per-second figures.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a snapshot of a tracker.
type ProgressStats struct {
	Stage       Stage
	Counts      Counts
	CurrentFile string
	Elapsed     time.Duration
	ErrorCount  int
	WarnCount   int
	Speed       SpeedStats
}

// NewProgressTracker creates a tracker in the snapshot stage.
func NewProgressTracker() *ProgressTracker {
	return newProgressTracker(time.Now)
}

func newProgressTracker(now func() time.Time) *ProgressTracker {
	start := now()
	return &ProgressTracker{
		stage:         StageSnapshot,
		startTime:     start,
		lastSampledAt: start,
		sparkline:     NewSparkline(60),
		now:           now,
	}
}

// Update records the latest event. Throughput is sampled at most every
// half second.
func (p *ProgressTracker) Update(event ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = event.Stage
	p.counts = event.Counts
	if event.CurrentFile != "" {
		p.currentFile = event.CurrentFile
	}

	now := p.now()
	elapsed := now.Sub(p.lastSampledAt)
	if elapsed < speedSampleInterval {
		return
	}
	seen := event.Counts.Seen()
	if delta := seen - p.lastSeen; delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		p.speed = speed
		p.samples++
		if p.samples == 1 {
			p.avgSpeed = speed
		} else {
			p.avgSpeed = 0.2*speed + 0.8*p.avgSpeed
		}
		if speed > p.peakSpeed {
			p.peakSpeed = speed
		}
		p.sparkline.Add(speed)
	}
	p.lastSeen = seen
	p.lastSampledAt = now
}

// SetStage moves to stage without touching counts.
func (p *ProgressTracker) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
}

// AddError records a failure or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressStats{
		Stage:       p.stage,
		Counts:      p.counts,
		CurrentFile: p.currentFile,
		Elapsed:     p.now().Sub(p.startTime),
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
		Speed:       SpeedStats{Current: p.speed, Avg: p.avgSpeed, Peak: p.peakSpeed},
	}
}

// Errors returns a copy of the recorded failures.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.errors...)
}

// RenderSparkline draws the throughput history.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sparkline.Render(width)
}

// CrawlProgress adapts r to crawl progress events. Counts are totalled here
// so every update carries the running figures.
func CrawlProgress(r Renderer) crawl.ProgressFunc {
	var (
		mu     sync.Mutex
		counts Counts
	)
	return func(ev crawl.Event) {
		mu.Lock()
		switch ev.Kind {
		case crawl.EventIndexed:
			counts.Indexed++
		case crawl.EventSkipped:
			counts.Skipped++
		case crawl.EventExcluded:
			counts.Excluded++
		case crawl.EventFailed:
			counts.Failed++
		}
		snapshot := counts
		mu.Unlock()

		if ev.Kind == crawl.EventFailed {
			r.AddError(ErrorEvent{File: ev.Path, Err: ev.Err})
		}
		r.UpdateProgress(ProgressEvent{Stage: StageCrawling, Counts: snapshot, CurrentFile: ev.Path})
	}
}
