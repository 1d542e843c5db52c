package fileops

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/justyntemme/razorops/internal/debug"
	"github.com/justyntemme/razorops/internal/metrics"
)

var errSourceInsideDestination = errors.New("source is inside the destination being replaced")

// item is one top-level source of a task.
type item struct {
	src  string
	dst  string // empty for Delete and Duplicate until resolved
	size int64
}

// plan parameterizes the walk. Copy, Cut and Duplicate write bytes into new
// entries; Move relocates entries by rename. Cut additionally removes each
// source after its tree was written in full.
type plan struct {
	// write materializes src at a dst that does not exist yet.
	write func(w *walker, src, dst string, info os.FileInfo) (bool, error)
	// merge folds the directory src into the existing directory dst.
	merge func(w *walker, src, dst string, info os.FileInfo) (bool, error)
	// after runs once per top-level item with whether it was fully written.
	after func(w *walker, it item, complete bool) error
}

var (
	copyPlan = plan{write: (*walker).copyTree, merge: (*walker).combine}
	cutPlan  = plan{write: (*walker).copyTree, merge: (*walker).combine, after: (*walker).removeSource}
	movePlan = plan{write: (*walker).relocate, merge: (*walker).relocate}
)

// walker carries the state of one running task.
type walker struct {
	ctx      context.Context
	task     *Task
	resolver ConflictResolver
	label    string
	buf      []byte
	sink     errorSink
	plan     plan

	// remembered holds ApplyToAll answers keyed by whether the conflict
	// was directory/directory.
	remembered map[bool]Decision
}

func newWalker(ctx context.Context, t *Task, resolver ConflictResolver, opts Options) *walker {
	return &walker{
		ctx:        ctx,
		task:       t,
		resolver:   resolver,
		label:      opts.CopyLabel,
		buf:        make([]byte, opts.ChunkSize),
		sink:       errorSink{kind: t.Kind, policy: opts.Policy},
		remembered: make(map[bool]Decision),
	}
}

func (w *walker) run(items []item) error {
	switch w.task.Kind {
	case Copy, Duplicate:
		w.plan = copyPlan
	case Cut:
		w.plan = cutPlan
	case Move:
		w.plan = movePlan
	case Delete:
		return w.runDelete(items)
	}

	for _, it := range items {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		if w.task.Kind == Duplicate {
			info, err := os.Lstat(it.src)
			if errors.Is(err, fs.ErrNotExist) {
				debug.Log(debug.OPS, "duplicate: %s vanished, skipping", it.src)
				continue
			}
			if err != nil {
				if err := w.sink.record(it.src, err); err != nil {
					return err
				}
				continue
			}
			dst, err := NextName(filepath.Dir(it.src), filepath.Base(it.src), w.label, info.IsDir())
			if err != nil {
				if err := w.sink.record(it.src, err); err != nil {
					return err
				}
				continue
			}
			it.dst = dst
		}

		complete, err := w.transfer(it.src, it.dst, true)
		if err != nil {
			return err
		}
		if w.plan.after != nil {
			if err := w.plan.after(w, it, complete); err != nil {
				return err
			}
		}
	}
	return w.sink.err()
}

func (w *walker) runDelete(items []item) error {
	for _, it := range items {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		if _, err := w.removeTree(it.src, true); err != nil {
			return err
		}
	}
	return w.sink.err()
}

// transfer writes src at dst, resolving a conflict when dst exists. It
// reports whether the whole subtree of src now exists at the destination.
// A non-nil error aborts the task.
func (w *walker) transfer(src, dst string, top bool) (bool, error) {
	if err := w.ctx.Err(); err != nil {
		return false, err
	}

	srcInfo, err := os.Lstat(src)
	if err != nil {
		if top && errors.Is(err, fs.ErrNotExist) {
			debug.Log(debug.OPS, "%s: %s vanished, skipping", w.task.Kind, src)
			return false, nil
		}
		return false, w.sink.record(src, err)
	}

	dstInfo, err := os.Lstat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return w.plan.write(w, src, dst, srcInfo)
	}
	if err != nil {
		return false, w.sink.record(dst, err)
	}

	if src == dst {
		if w.task.Kind == Move || w.task.Kind == Cut {
			debug.Log(debug.OPS, "%s: %s is already in place", w.task.Kind, src)
			return false, nil
		}
		next, err := NextName(filepath.Dir(dst), filepath.Base(dst), w.label, srcInfo.IsDir())
		if err != nil {
			return false, w.sink.record(src, err)
		}
		return w.plan.write(w, src, next, srcInfo)
	}

	c := newConflict(w.task.Kind, src, dst, srcInfo, dstInfo)
	d, err := w.decide(c)
	if err != nil {
		if errors.Is(err, ErrInvalidDecision) {
			return false, w.sink.record(dst, err)
		}
		return false, err
	}
	metrics.RecordConflict(d.String())
	debug.Log(debug.CONFLICT, "%s -> %s: %s", src, dst, d)

	switch d {
	case Replace:
		if isWithin(dst, src) {
			return false, w.sink.record(dst, errSourceInsideDestination)
		}
		ok, err := w.removeTree(dst, false)
		if err != nil || !ok {
			return false, err
		}
		return w.plan.write(w, src, dst, srcInfo)
	case RenameNextTo:
		next, err := NextName(filepath.Dir(dst), filepath.Base(dst), w.label, srcInfo.IsDir())
		if err != nil {
			return false, w.sink.record(dst, err)
		}
		return w.plan.write(w, src, next, srcInfo)
	case Combine:
		return w.plan.merge(w, src, dst, srcInfo)
	default:
		return false, nil
	}
}

// decide returns the remembered answer for c's shape or asks the resolver.
func (w *walker) decide(c Conflict) (Decision, error) {
	dir := c.DirConflict()
	if d, ok := w.remembered[dir]; ok {
		return d, nil
	}
	a, err := w.resolver.Resolve(w.ctx, c)
	if err != nil {
		return Skip, err
	}
	if !a.Decision.ValidFor(dir) {
		return Skip, ErrInvalidDecision
	}
	if a.ApplyToAll {
		w.remembered[dir] = a.Decision
	}
	return a.Decision, nil
}

// copyTree writes a fresh copy of src at dst.
func (w *walker) copyTree(src, dst string, info os.FileInfo) (bool, error) {
	switch {
	case info.IsDir():
		if err := os.Mkdir(dst, DirPermission|info.Mode().Perm()); err != nil {
			return false, w.sink.record(dst, err)
		}
		complete, err := w.copyChildren(src, dst)
		if err != nil {
			return false, err
		}
		if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
			debug.Log(debug.OPS, "chmod %s: %v", dst, err)
		}
		return complete, nil
	case info.Mode()&os.ModeSymlink != 0:
		if err := copySymlink(src, dst); err != nil {
			return false, w.sink.record(src, err)
		}
		return true, nil
	case info.Mode().IsRegular():
		if err := w.copyFile(src, dst, info); err != nil {
			return false, w.sink.record(src, err)
		}
		return true, nil
	default:
		debug.Log(debug.OPS, "skipping special file %s (%s)", src, info.Mode().Type())
		return false, nil
	}
}

// combine merges the directory src into the existing directory dst. Nested
// collisions go through the same conflict handling as top-level ones.
func (w *walker) combine(src, dst string, _ os.FileInfo) (bool, error) {
	return w.copyChildren(src, dst)
}

func (w *walker) copyChildren(src, dst string) (bool, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return false, w.sink.record(src, err)
	}
	complete := true
	for _, e := range entries {
		ok, err := w.transfer(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name()), false)
		if err != nil {
			return false, err
		}
		complete = complete && ok
	}
	return complete, nil
}

// removeSource deletes a Cut source once its copy is complete. The removal
// phase accounts for the second half of the task total either way.
func (w *walker) removeSource(it item, complete bool) error {
	if !complete {
		debug.Log(debug.OPS, "cut: keeping %s, copy incomplete", it.src)
		w.task.tracker.Add(it.size)
		return nil
	}
	_, err := w.removeTree(it.src, false)
	w.task.tracker.Add(it.size)
	return err
}
