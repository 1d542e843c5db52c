package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/justyntemme/razorops/internal/archive"
	"github.com/justyntemme/razorops/internal/debug"
	"github.com/justyntemme/razorops/internal/fileops"
	"github.com/justyntemme/razorops/internal/trash"
)

var ErrClipboardEmpty = errors.New("clipboard is empty")

// SetClipboard remembers paths for the next Paste.
func (f *FileOpsController) SetClipboard(op ClipOp, paths []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(paths) == 0 {
		f.clipboard = nil
		return
	}
	f.clipboard = &Clipboard{Op: op, Paths: f.absolute(paths)}
	debug.Log(debug.APP, "clipboard: %s %d paths", op, len(paths))
}

// Clipboard returns the pending clipboard, nil when empty.
func (f *FileOpsController) Clipboard() *Clipboard {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clipboard == nil {
		return nil
	}
	c := *f.clipboard
	c.Paths = append([]string(nil), c.Paths...)
	return &c
}

// Paste copies or cuts the clipboard into the current directory. A cut
// clipboard is cleared once its paste has started.
func (f *FileOpsController) Paste(ctx context.Context) (*fileops.Task, error) {
	f.mu.Lock()
	clip := f.clipboard
	if clip != nil && clip.Op == ClipCut {
		f.clipboard = nil
	}
	f.mu.Unlock()

	if clip == nil {
		return nil, ErrClipboardEmpty
	}

	dest := f.deps.Dir.Get()
	if clip.Op == ClipCut {
		return f.deps.Engine.Cut(ctx, clip.Paths, dest)
	}
	return f.deps.Engine.Copy(ctx, clip.Paths, dest)
}

// Delete permanently removes paths.
func (f *FileOpsController) Delete(ctx context.Context, paths []string) (*fileops.Task, error) {
	return f.deps.Engine.Delete(ctx, f.absolute(paths))
}

// Duplicate copies each path next to itself.
func (f *FileOpsController) Duplicate(ctx context.Context, paths []string) (*fileops.Task, error) {
	return f.deps.Engine.Duplicate(ctx, f.absolute(paths))
}

// MoveTo relocates paths into dir; a relative dir is taken from the current
// directory.
func (f *FileOpsController) MoveTo(ctx context.Context, paths []string, dir string) (*fileops.Task, error) {
	return f.deps.Engine.Move(ctx, f.absolute(paths), expandPath(dir, f.deps.Dir.Get()))
}

// Trash moves paths into the trash bin. Info records for entries that never
// arrive are pruned when the move ends.
func (f *FileOpsController) Trash(ctx context.Context, paths []string) (*fileops.Task, error) {
	if f.deps.Bin == nil {
		return nil, errors.New("trash is not configured")
	}
	paths = f.absolute(paths)
	names, err := f.deps.Bin.Prepare(paths)
	if err != nil {
		return nil, err
	}

	task, err := f.deps.Engine.Submit(ctx, fileops.Request{
		Kind:        fileops.Move,
		Sources:     paths,
		Destination: f.deps.Bin.FilesDir(),
		Names:       names,
		Label:       "moving to " + trash.DisplayName(),
	})
	if err != nil {
		if len(names) > 0 {
			f.deps.Bin.Prune(names...)
		}
		return nil, err
	}

	go func() {
		<-task.Done()
		if n, err := f.deps.Bin.Prune(names...); err != nil || n > 0 {
			debug.Log(debug.APP, "trash: pruned %d records: %v", n, err)
		}
	}()
	return task, nil
}

// Compress writes paths into container. A relative container lands in the
// current directory; an empty kind is inferred from the container name.
func (f *FileOpsController) Compress(ctx context.Context, paths []string, container string, kind archive.Kind) error {
	if f.deps.Archive == nil {
		return errors.New("archive support is not configured")
	}
	container = expandPath(container, f.deps.Dir.Get())
	if kind == "" {
		k, err := archive.KindFromPath(container)
		if err != nil {
			return err
		}
		kind = k
	}
	if err := f.deps.Archive.Compress(ctx, f.absolute(paths), container, kind); err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	f.refresh()
	return nil
}

// Extract unpacks container into a directory named after it inside the
// current directory. The returned task deletes the container when
// post-extraction delete is enabled.
func (f *FileOpsController) Extract(ctx context.Context, container string) (string, *fileops.Task, error) {
	if f.deps.Archive == nil {
		return "", nil, errors.New("archive support is not configured")
	}
	dir := f.deps.Dir.Get()
	container = expandPath(container, dir)
	dest := filepath.Join(dir, archive.StripExtension(container))

	task, err := f.deps.Archive.Extract(ctx, container, dest)
	if err != nil {
		return "", nil, err
	}
	f.refresh()
	return dest, task, nil
}

func (f *FileOpsController) refresh() {
	if f.deps.Refresh != nil {
		f.deps.Refresh()
	}
}

func (f *FileOpsController) absolute(paths []string) []string {
	base := f.deps.Dir.Get()
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = expandPath(p, base)
	}
	return out
}
