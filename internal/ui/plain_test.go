package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress(t *testing.T) {
	tests := []struct {
		name  string
		event ProgressEvent
		want  string
	}{
		{
			name:  "crawl counts",
			event: ProgressEvent{Stage: StageCrawling, Counts: Counts{Indexed: 12, Skipped: 1}, CurrentFile: "reports/q1.pdf"},
			want:  "[CRAWL] 12 indexed, 1 skipped, 0 excluded, 0 failed - reports/q1.pdf\n",
		},
		{
			name:  "stage message",
			event: ProgressEvent{Stage: StageSnapshot, Message: "listing 40 documents"},
			want:  "[SNAP] listing 40 documents\n",
		},
		{
			name:  "empty message prints nothing",
			event: ProgressEvent{Stage: StageSweeping},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			r := NewPlainRenderer(NewConfig(buf))

			r.UpdateProgress(tt.event)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPlainRenderer_AddError(t *testing.T) {
	tests := []struct {
		name  string
		event ErrorEvent
		want  string
	}{
		{"error with file", ErrorEvent{File: "a.txt", Err: errors.New("permission denied")}, "ERROR: a.txt: permission denied\n"},
		{"warning", ErrorEvent{File: "big.iso", Err: errors.New("too large"), IsWarn: true}, "WARN: big.iso: too large\n"},
		{"no file", ErrorEvent{Err: errors.New("index offline")}, "ERROR: index offline\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			r := NewPlainRenderer(NewConfig(buf))

			r.AddError(tt.event)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPlainRenderer_Complete(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))
	require.NoError(t, r.Start(context.Background()))

	// When: a run with failures completes
	r.Complete(CompletionStats{
		Source:   "finance",
		Counts:   Counts{Indexed: 95, Skipped: 3, Excluded: 2, Failed: 1},
		Deleted:  4,
		Duration: 5240 * time.Millisecond,
	})

	// Then: the summary fits one line without escape codes
	out := buf.String()
	assert.Equal(t, "Complete: finance: 95 indexed, 3 skipped, 2 excluded, 4 deleted in 5.2s (1 errors)\n", out)
	assert.NotContains(t, out, "\x1b[")
	assert.NoError(t, r.Stop())
}
