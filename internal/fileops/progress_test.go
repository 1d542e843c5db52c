package fileops

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotFraction(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want float64
	}{
		{"empty task is complete", Snapshot{0, 0}, 1},
		{"half", Snapshot{50, 100}, 0.5},
		{"clamped", Snapshot{150, 100}, 1},
		{"not started", Snapshot{0, 100}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.snap.Fraction(), 1e-9)
		})
	}
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{Transferred: 1000, Total: 4000}
	assert.Equal(t, "1.0 kB / 4.0 kB (25%)", s.String())
}

func TestTrackerConcurrentAdd(t *testing.T) {
	tr := NewTracker(1000)
	var advanced int64
	var mu sync.Mutex
	tr.onAdvance = func(n int64) {
		mu.Lock()
		advanced += n
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tr.Add(10)
			}
		}()
	}
	wg.Wait()

	tr.Add(0)
	tr.Add(-3)
	assert.Equal(t, int64(1000), tr.Transferred())
	assert.Equal(t, int64(1000), tr.Total())
	assert.Equal(t, int64(1000), advanced)
}

func TestProgressWriter(t *testing.T) {
	var buf bytes.Buffer
	var seen []int64
	pw := &progressWriter{w: &buf, onWrite: func(n int64) { seen = append(seen, n) }}

	_, _ = pw.Write([]byte("hello"))
	_, _ = pw.Write([]byte(" world"))

	assert.Equal(t, "hello world", buf.String())
	assert.Equal(t, []int64{5, 6}, seen)
}
