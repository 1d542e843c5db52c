package fileops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/charlievieth/fastwalk"
	"github.com/justyntemme/razorops/internal/debug"
)

type moveEntry struct {
	rel  string
	info os.FileInfo
}

// relocate moves src to dst by renaming. A directory is walked with fastwalk,
// its directories are created at the destination first, then every other
// entry is renamed into place, overwriting what is there. Source directories
// left empty are removed deepest first. dst may already exist, which is how
// Combine merges for moves.
func (w *walker) relocate(src, dst string, info os.FileInfo) (bool, error) {
	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(dst), DirPermission); err != nil {
			return false, w.sink.record(dst, err)
		}
		if err := w.relocateFile(src, dst, info); err != nil {
			return false, w.sink.record(src, err)
		}
		return true, nil
	}

	var (
		mu      sync.Mutex
		dirs    []moveEntry
		files   []moveEntry
		walkErr []error
	)
	conf := &fastwalk.Config{Follow: false}
	err := fastwalk.Walk(conf, src, func(path string, d fs.DirEntry, err error) error {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			walkErr = append(walkErr, &OpError{Kind: w.task.Kind, Path: path, Err: err})
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		fi, err := os.Lstat(path)
		if err != nil {
			walkErr = append(walkErr, &OpError{Kind: w.task.Kind, Path: path, Err: err})
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, moveEntry{rel: rel, info: fi})
		} else {
			files = append(files, moveEntry{rel: rel, info: fi})
		}
		return nil
	})
	if err != nil {
		return false, w.sink.record(src, err)
	}
	for _, e := range walkErr {
		if err := w.sink.record("", e); err != nil {
			return false, err
		}
	}

	// Parents before children
	sort.Slice(dirs, func(i, j int) bool {
		return len(dirs[i].rel) < len(dirs[j].rel)
	})

	complete := len(walkErr) == 0
	for _, d := range dirs {
		target := filepath.Join(dst, d.rel)
		if err := os.MkdirAll(target, DirPermission); err != nil {
			if err := w.sink.record(target, err); err != nil {
				return false, err
			}
			complete = false
			continue
		}
		if err := os.Chmod(target, d.info.Mode().Perm()|0o700); err != nil {
			debug.Log(debug.OPS, "chmod %s: %v", target, err)
		}
	}

	for _, f := range files {
		if err := w.ctx.Err(); err != nil {
			return false, err
		}
		if err := w.relocateFile(filepath.Join(src, f.rel), filepath.Join(dst, f.rel), f.info); err != nil {
			if err := w.sink.record(filepath.Join(src, f.rel), err); err != nil {
				return false, err
			}
			complete = false
		}
	}

	// Children before parents; a directory that still holds a failed entry
	// stays behind.
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		if err := os.Remove(filepath.Join(src, d.rel)); err != nil {
			debug.Log(debug.OPS, "move: leaving %s: %v", filepath.Join(src, d.rel), err)
			continue
		}
		if err := os.Chmod(filepath.Join(dst, d.rel), d.info.Mode().Perm()); err != nil {
			debug.Log(debug.OPS, "chmod %s: %v", filepath.Join(dst, d.rel), err)
		}
	}
	return complete, nil
}

// relocateFile renames src over dst. Across filesystems it falls back to a
// copy followed by removal of the source.
func (w *walker) relocateFile(src, dst string, info os.FileInfo) error {
	err := os.Rename(src, dst)
	if err == nil {
		if info.Mode().IsRegular() {
			w.task.tracker.Add(info.Size())
		}
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}

	debug.Log(debug.OPS, "move: %s crosses devices, copying", src)
	if di, err := os.Lstat(dst); err == nil && !di.IsDir() {
		if err := os.Remove(dst); err != nil {
			return err
		}
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		err = copySymlink(src, dst)
	case info.Mode().IsRegular():
		err = w.copyFile(src, dst, info)
	default:
		return err
	}
	if err != nil {
		return err
	}
	return os.Remove(src)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV) ||
			strings.Contains(linkErr.Err.Error(), "not same device")
	}
	return false
}
