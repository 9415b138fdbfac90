package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awaitBatch(t *testing.T, d *Debouncer, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(timeout):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want Operation
	}{
		{"single event passes through", []Operation{OpModify}, OpModify},
		{"repeated modifies collapse", []Operation{OpModify, OpModify, OpModify}, OpModify},
		{"create then modify stays create", []Operation{OpCreate, OpModify}, OpCreate},
		{"modify then delete is delete", []Operation{OpModify, OpDelete}, OpDelete},
		{"delete then create is modify", []Operation{OpDelete, OpCreate}, OpModify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a debouncer with a short window
			d := NewDebouncer(30 * time.Millisecond)
			defer d.Stop()

			// When: operations on one path arrive inside the window
			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "/root/report.txt", Operation: op, Timestamp: time.Now()})
			}

			// Then: a single merged event is emitted
			batch := awaitBatch(t, d, time.Second)
			require.Len(t, batch, 1)
			assert.Equal(t, "/root/report.txt", batch[0].Path)
			assert.Equal(t, tt.want, batch[0].Operation)
		})
	}
}

func TestDebouncer_CreateThenDelete_CancelsOut(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/root/tmp.txt", Operation: OpCreate})
	d.Add(FileEvent{Path: "/root/tmp.txt", Operation: OpDelete})
	d.Add(FileEvent{Path: "/root/kept.txt", Operation: OpCreate})

	batch := awaitBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "/root/kept.txt", batch[0].Path)
}

func TestDebouncer_BatchSortedByPath(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	for _, p := range []string{"/r/c", "/r/a", "/r/b"} {
		d.Add(FileEvent{Path: p, Operation: OpModify})
	}

	batch := awaitBatch(t, d, time.Second)
	var paths []string
	for _, ev := range batch {
		paths = append(paths, ev.Path)
	}
	assert.Equal(t, []string{"/r/a", "/r/b", "/r/c"}, paths)
}

func TestDebouncer_WindowRestartsOnActivity(t *testing.T) {
	// Given: a window longer than the gap between events
	d := NewDebouncer(80 * time.Millisecond)
	defer d.Stop()

	// When: events keep arriving for a while
	for i := 0; i < 4; i++ {
		d.Add(FileEvent{Path: "/r/busy", Operation: OpModify})
		time.Sleep(30 * time.Millisecond)
	}

	// Then: exactly one batch is emitted after things go quiet
	batch := awaitBatch(t, d, time.Second)
	assert.Len(t, batch, 1)
	select {
	case extra := <-d.Output():
		t.Fatalf("unexpected second batch %v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.Add(FileEvent{Path: "/r/x", Operation: OpCreate})

	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "/r/y", Operation: OpCreate})

	_, ok := <-d.Output()
	assert.False(t, ok, "output is closed without flushing pending events")
}
