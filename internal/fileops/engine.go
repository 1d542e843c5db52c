package fileops

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/justyntemme/razorops/internal/debug"
	rfs "github.com/justyntemme/razorops/internal/fs"
	"github.com/justyntemme/razorops/internal/metrics"
	"go.uber.org/zap"
)

// DefaultChunkSize is the copy buffer size and the progress granularity.
const DefaultChunkSize = 256 * 1024

// Common file permission modes
const (
	DirPermission  = 0o755 // Standard directory permissions
	FilePermission = 0o644 // Standard file permissions
)

// Observer is told about task lifecycle changes. Calls happen on the task's
// worker goroutine, so implementations hand work to their own goroutine.
type Observer interface {
	TaskStarted(t *Task)
	TaskFinished(t *Task)
}

// Options configure an Engine.
type Options struct {
	ChunkSize      int         // copy buffer size, DefaultChunkSize when 0
	Policy         ErrorPolicy // what to do after an entry fails
	CopyLabel      string      // word used by the naming probe, DefaultCopyLabel when empty
	MaxWorkers     int         // 0 runs every task at once; n bounds concurrently running tasks
	CheckFreeSpace bool        // refuse copies that can't fit on the destination volume
	Observers      []Observer
}

// Engine starts file operations. Each operation runs on its own goroutine
// from the moment it is submitted.
type Engine struct {
	opts     Options
	resolver ConflictResolver
	sem      chan struct{}
	wg       sync.WaitGroup
}

// NewEngine returns an engine that resolves conflicts through resolver.
func NewEngine(resolver ConflictResolver, opts Options) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.CopyLabel == "" {
		opts.CopyLabel = DefaultCopyLabel
	}
	e := &Engine{opts: opts, resolver: resolver}
	if opts.MaxWorkers > 0 {
		e.sem = make(chan struct{}, opts.MaxWorkers)
	}
	return e
}

// Request is the general form of an operation.
type Request struct {
	Kind        Kind
	Sources     []string
	Destination string   // target directory; unused by Delete and Duplicate
	Names       []string // optional target names, one per source
	Label       string   // progress label, Kind.Label() when empty
}

// Copy copies sources into dstDir.
func (e *Engine) Copy(ctx context.Context, sources []string, dstDir string) (*Task, error) {
	return e.Submit(ctx, Request{Kind: Copy, Sources: sources, Destination: dstDir})
}

// Cut copies sources into dstDir and removes each source once its tree has
// been written completely.
func (e *Engine) Cut(ctx context.Context, sources []string, dstDir string) (*Task, error) {
	return e.Submit(ctx, Request{Kind: Cut, Sources: sources, Destination: dstDir})
}

// Move relocates sources into dstDir by renaming entries in place.
func (e *Engine) Move(ctx context.Context, sources []string, dstDir string) (*Task, error) {
	return e.Submit(ctx, Request{Kind: Move, Sources: sources, Destination: dstDir})
}

// Delete removes sources recursively.
func (e *Engine) Delete(ctx context.Context, sources []string) (*Task, error) {
	return e.Submit(ctx, Request{Kind: Delete, Sources: sources})
}

// Duplicate copies every source next to itself under an auto-numbered name.
func (e *Engine) Duplicate(ctx context.Context, sources []string) (*Task, error) {
	return e.Submit(ctx, Request{Kind: Duplicate, Sources: sources})
}

// Wait blocks until every submitted task has finished.
func (e *Engine) Wait() { e.wg.Wait() }

// Submit validates req, sizes its sources, and starts the worker.
func (e *Engine) Submit(ctx context.Context, req Request) (*Task, error) {
	if len(req.Sources) == 0 {
		return nil, errors.New("no sources")
	}
	if req.Names != nil && len(req.Names) != len(req.Sources) {
		return nil, fmt.Errorf("got %d names for %d sources", len(req.Names), len(req.Sources))
	}

	sources := make([]string, len(req.Sources))
	for i, s := range req.Sources {
		sources[i] = filepath.Clean(s)
	}

	dest := ""
	switch req.Kind {
	case Copy, Cut, Move:
		if req.Destination == "" {
			return nil, fmt.Errorf("%s needs a destination", req.Kind)
		}
		dest = filepath.Clean(req.Destination)
	case Delete, Duplicate:
	default:
		return nil, fmt.Errorf("unknown operation kind %d", req.Kind)
	}

	items := make([]item, len(sources))
	var total int64
	for i, src := range sources {
		size, err := rfs.TreeSize(src)
		if err != nil {
			return nil, fmt.Errorf("size %s: %w", src, err)
		}
		items[i] = item{src: src, size: size}
		if dest != "" {
			name := filepath.Base(src)
			if req.Names != nil && req.Names[i] != "" {
				name = req.Names[i]
			}
			items[i].dst = filepath.Join(dest, name)
			if isWithin(src, items[i].dst) && items[i].dst != src {
				return nil, fmt.Errorf("%s into %s: %w", src, dest, ErrDestinationInsideSource)
			}
		}
		total += size
	}
	if req.Kind == Cut {
		// copy phase plus removal phase
		total *= 2
	}

	if e.opts.CheckFreeSpace {
		if err := checkFreeSpace(req.Kind, items, dest); err != nil {
			return nil, err
		}
	}

	t := newTask(req.Kind, req.Label, sources, dest, total)
	kind := req.Kind.String()
	t.tracker.onAdvance = func(n int64) { metrics.RecordBytes(kind, n) }

	e.start(ctx, t, items)
	return t, nil
}

func (e *Engine) start(ctx context.Context, t *Task, items []item) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		if e.sem != nil {
			select {
			case e.sem <- struct{}{}:
				defer func() { <-e.sem }()
			case <-ctx.Done():
				e.begin(t)
				e.end(t, ctx.Err())
				return
			}
		}

		e.begin(t)
		w := newWalker(ctx, t, e.resolver, e.opts)
		e.end(t, w.run(items))
	}()
}

func (e *Engine) begin(t *Task) {
	t.markRunning()
	metrics.RecordOperationStart()
	debug.L().Info("operation started",
		zap.String("id", t.ID),
		zap.Stringer("kind", t.Kind),
		zap.Strings("sources", t.Sources),
		zap.String("destination", t.Destination),
		zap.Int64("total", t.tracker.Total()))
	for _, o := range e.opts.Observers {
		o.TaskStarted(t)
	}
}

func (e *Engine) end(t *Task, err error) {
	t.finish(err)
	metrics.RecordOperationEnd(t.Kind.String(), err)
	fields := []zap.Field{
		zap.String("id", t.ID),
		zap.Stringer("kind", t.Kind),
		zap.Int64("transferred", t.tracker.Transferred()),
		zap.Int64("total", t.tracker.Total()),
	}
	if err != nil {
		debug.L().Warn("operation failed", append(fields, zap.Error(err))...)
	} else {
		debug.L().Info("operation finished", fields...)
	}
	for _, o := range e.opts.Observers {
		o.TaskFinished(t)
	}
}

// isWithin reports whether path is root or lies below it.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func checkFreeSpace(kind Kind, items []item, dest string) error {
	needed := make(map[string]int64)
	for _, it := range items {
		switch kind {
		case Copy, Cut:
			needed[dest] += it.size
		case Duplicate:
			needed[filepath.Dir(it.src)] += it.size
		}
	}
	for dir, n := range needed {
		free, ok := rfs.FreeSpace(dir)
		if ok && free < n {
			return fmt.Errorf("%s needs %d bytes, %d free: %w", dir, n, free, ErrInsufficientSpace)
		}
	}
	return nil
}
