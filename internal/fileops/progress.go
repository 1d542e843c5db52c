package fileops

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// Tracker accumulates bytes transferred for one task. The total is fixed when
// the tracker is created; only the owning task advances it.
type Tracker struct {
	transferred atomic.Int64
	total       int64
	onAdvance   func(n int64)
}

// NewTracker returns a tracker with a fixed total.
func NewTracker(total int64) *Tracker {
	return &Tracker{total: total}
}

// Add advances the transferred counter by n bytes.
func (t *Tracker) Add(n int64) {
	if n <= 0 {
		return
	}
	t.transferred.Add(n)
	if t.onAdvance != nil {
		t.onAdvance(n)
	}
}

// Transferred returns the bytes transferred so far.
func (t *Tracker) Transferred() int64 { return t.transferred.Load() }

// Total returns the bytes the task expects to transfer.
func (t *Tracker) Total() int64 { return t.total }

// Snapshot returns both counters.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{Transferred: t.Transferred(), Total: t.total}
}

// Snapshot is a read-only view of a tracker.
type Snapshot struct {
	Transferred int64
	Total       int64
}

// Fraction returns transferred/total clamped to [0, 1]. An empty task counts
// as complete.
func (s Snapshot) Fraction() float64 {
	if s.Total <= 0 {
		return 1
	}
	f := float64(s.Transferred) / float64(s.Total)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// Percent returns Fraction as a whole percentage.
func (s Snapshot) Percent() int {
	return int(s.Fraction() * 100)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s / %s (%d%%)",
		humanize.Bytes(uint64(max(s.Transferred, 0))),
		humanize.Bytes(uint64(max(s.Total, 0))),
		s.Percent())
}

// progressWriter wraps an io.Writer and calls onWrite after each write
type progressWriter struct {
	w       io.Writer
	onWrite func(int64)
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	if n > 0 && pw.onWrite != nil {
		pw.onWrite(int64(n))
	}
	return n, err
}
