package archive

import (
	"context"

	"github.com/justyntemme/razorops/internal/debug"
	"github.com/justyntemme/razorops/internal/fileops"
)

// Deleter removes paths through the file operation engine.
type Deleter interface {
	Delete(ctx context.Context, sources []string) (*fileops.Task, error)
}

// Dispatcher is the archive collaborator the orchestrator calls. With
// DeleteAfterExtract set, a successful extraction deletes the container
// through Deleter.
type Dispatcher struct {
	DeleteAfterExtract bool
	Deleter            Deleter
}

// Compress writes sources into container.
func (d *Dispatcher) Compress(ctx context.Context, sources []string, container string, kind Kind) error {
	return Compress(ctx, sources, container, kind)
}

// Extract unpacks container into dest. The returned task is the deletion of
// the container, nil when none was started.
func (d *Dispatcher) Extract(ctx context.Context, container, dest string) (*fileops.Task, error) {
	if err := Extract(ctx, container, dest); err != nil {
		return nil, err
	}
	if !d.DeleteAfterExtract || d.Deleter == nil {
		return nil, nil
	}
	debug.Log(debug.ARCHIVE, "deleting %s after extraction", container)
	return d.Deleter.Delete(ctx, []string{container})
}
