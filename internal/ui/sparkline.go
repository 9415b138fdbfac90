package ui

import "strings"

// sparkBlocks are the eight bar heights, lowest first.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps the most recent throughput samples and draws them as a
// row of block characters scaled to the largest visible sample.
type Sparkline struct {
	capacity int
	samples  []float64
}

// NewSparkline keeps up to capacity samples (60 when capacity <= 0).
func NewSparkline(capacity int) *Sparkline {
	if capacity <= 0 {
		capacity = 60
	}
	return &Sparkline{capacity: capacity, samples: make([]float64, 0, capacity)}
}

// Add appends a sample, dropping the oldest when full.
func (s *Sparkline) Add(v float64) {
	if len(s.samples) == s.capacity {
		copy(s.samples, s.samples[1:])
		s.samples = s.samples[:s.capacity-1]
	}
	s.samples = append(s.samples, v)
}

// Len returns the number of stored samples.
func (s *Sparkline) Len() int {
	return len(s.samples)
}

// Clear drops every sample.
func (s *Sparkline) Clear() {
	s.samples = s.samples[:0]
}

// Render draws the newest width samples, left-padded with spaces.
func (s *Sparkline) Render(width int) string {
	if width <= 0 {
		width = s.capacity
	}
	visible := s.samples
	if len(visible) > width {
		visible = visible[len(visible)-width:]
	}

	peak := 0.0
	for _, v := range visible {
		if v > peak {
			peak = v
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", width-len(visible)))
	top := len(sparkBlocks) - 1
	for _, v := range visible {
		level := 0
		if peak > 0 && v > 0 {
			level = int(v / peak * float64(top))
		}
		sb.WriteRune(sparkBlocks[min(max(level, 0), top)])
	}
	return sb.String()
}
