package fileops

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// State is a task's lifecycle position.
type State int

const (
	Pending State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Task is one background operation. It owns its progress counters; callers
// only read them.
type Task struct {
	ID          string
	Kind        Kind
	Label       string
	Sources     []string
	Destination string // empty for Delete

	tracker *Tracker
	done    chan struct{}

	mu         sync.Mutex
	state      State
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

func newTask(kind Kind, label string, sources []string, dest string, total int64) *Task {
	if label == "" {
		label = kind.Label()
	}
	return &Task{
		ID:          uuid.NewString(),
		Kind:        kind,
		Label:       label,
		Sources:     append([]string(nil), sources...),
		Destination: dest,
		tracker:     NewTracker(total),
		done:        make(chan struct{}),
	}
}

// Progress returns the current transferred/total pair.
func (t *Task) Progress() Snapshot { return t.tracker.Snapshot() }

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx is done and returns the task error.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the task's final error, nil while running or on success.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Errors returns every collected failure as a flat list.
func (t *Task) Errors() []error {
	return multierr.Errors(t.Err())
}

// State returns the lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// StartedAt returns when the worker began, zero while pending.
func (t *Task) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt
}

// FinishedAt returns when the worker returned, zero until then.
func (t *Task) FinishedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finishedAt
}

func (t *Task) markRunning() {
	t.mu.Lock()
	t.state = Running
	t.startedAt = time.Now()
	t.mu.Unlock()
}

func (t *Task) finish(err error) {
	t.mu.Lock()
	t.err = err
	t.finishedAt = time.Now()
	if err != nil {
		t.state = Failed
	} else {
		t.state = Succeeded
	}
	t.mu.Unlock()
	close(t.done)
}
