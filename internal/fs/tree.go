package fs

import (
	"errors"
	"io/fs"
	"os"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/justyntemme/razorops/internal/debug"
)

// Exists reports whether path exists without following a final symlink.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// TreeSize returns the summed size of every regular file at or below path.
// Symlinks are not followed. A missing path has size 0.
func TreeSize(path string) (int64, error) {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		if info.Mode().IsRegular() {
			return info.Size(), nil
		}
		return 0, nil
	}

	var total atomic.Int64
	conf := &fastwalk.Config{Follow: false}
	err = fastwalk.Walk(conf, path, func(fullPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Entries that vanish or can't be read are not counted
			debug.Log(debug.FS_WALK, "TreeSize: skipping %q: %v", fullPath, walkErr)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		total.Add(fi.Size())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total.Load(), nil
}

// TotalSize sums TreeSize over paths.
func TotalSize(paths []string) (int64, error) {
	var sum int64
	for _, p := range paths {
		n, err := TreeSize(p)
		if err != nil {
			return sum, err
		}
		sum += n
	}
	debug.Log(debug.FS, "TotalSize: %d paths, %d bytes", len(paths), sum)
	return sum, nil
}
