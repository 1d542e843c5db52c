package fileops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/justyntemme/razorops/internal/debug"
)

// removeTree deletes path and everything below it, children before parents.
// Symlinks are removed, never followed. A path that is already gone counts as
// removed. When count is set, regular file sizes advance the task progress.
// ok reports whether path is gone; a non-nil error aborts the task.
func (w *walker) removeTree(path string, count bool) (ok bool, err error) {
	if err := w.ctx.Err(); err != nil {
		return false, err
	}

	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, w.sink.record(path, err)
	}

	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return false, w.sink.record(path, err)
		}
		ok = true
		for _, e := range entries {
			childOK, err := w.removeTree(filepath.Join(path, e.Name()), count)
			if err != nil {
				return false, err
			}
			ok = ok && childOK
		}
		if !ok {
			debug.Log(debug.OPS, "delete: leaving %s, not every child was removed", path)
			return false, nil
		}
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, w.sink.record(path, err)
	}
	if count && info.Mode().IsRegular() {
		w.task.tracker.Add(info.Size())
	}
	return true, nil
}
