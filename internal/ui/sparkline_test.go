package ui

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSparkline_Render(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		width   int
		want    string
	}{
		{"empty pads with spaces", nil, 4, "    "},
		{"scaled to peak", []float64{0, 7, 14}, 3, "▁▄█"},
		{"left padded", []float64{5}, 3, "  █"},
		{"newest samples win", []float64{100, 1, 2}, 2, "▄█"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSparkline(10)
			for _, v := range tt.samples {
				s.Add(v)
			}

			got := s.Render(tt.width)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.width, utf8.RuneCountInString(got))
		})
	}
}

func TestSparkline_Capacity(t *testing.T) {
	s := NewSparkline(3)
	for i := 1; i <= 5; i++ {
		s.Add(float64(i))
	}

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "▅▆█", s.Render(0))

	s.Clear()
	assert.Zero(t, s.Len())
	assert.Equal(t, "   ", s.Render(0))
}
