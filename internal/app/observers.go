package app

import (
	"github.com/justyntemme/razorops/internal/debug"
	"github.com/justyntemme/razorops/internal/fileops"
	"github.com/justyntemme/razorops/internal/store"
)

// refreshObserver schedules a directory reload on the foreground loop when a
// task finishes. Requests coalesce: one pending refresh covers any number of
// finished tasks.
type refreshObserver struct {
	refresh chan struct{}
}

func newRefreshObserver() *refreshObserver {
	return &refreshObserver{refresh: make(chan struct{}, 1)}
}

func (r *refreshObserver) TaskStarted(*fileops.Task) {}

func (r *refreshObserver) TaskFinished(*fileops.Task) { r.request() }

func (r *refreshObserver) request() {
	select {
	case r.refresh <- struct{}{}:
	default:
	}
}

// journalObserver writes task lifecycle records to the journal worker.
type journalObserver struct {
	journal *store.Journal
}

func (j *journalObserver) TaskStarted(t *fileops.Task) { j.send(t) }

func (j *journalObserver) TaskFinished(t *fileops.Task) { j.send(t) }

func (j *journalObserver) send(t *fileops.Task) {
	select {
	case j.journal.RequestChan <- taskRecord(t):
	default:
		debug.Log(debug.STORE, "journal queue full, dropping %s update", t.ID)
	}
}

func taskRecord(t *fileops.Task) store.Record {
	snap := t.Progress()
	rec := store.Record{
		ID:          t.ID,
		Kind:        t.Kind.String(),
		Label:       t.Label,
		Sources:     t.Sources,
		Destination: t.Destination,
		State:       t.State().String(),
		Transferred: snap.Transferred,
		Total:       snap.Total,
		StartedAt:   t.StartedAt(),
		FinishedAt:  t.FinishedAt(),
	}
	if err := t.Err(); err != nil {
		rec.Error = err.Error()
	}
	return rec
}
