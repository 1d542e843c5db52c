package fileops

import (
	"errors"
	"io"
	"os"

	"github.com/justyntemme/razorops/internal/debug"
)

// copyFile copies one regular file in chunks, advancing progress after every
// chunk and checking for cancellation between chunks. A failed copy leaves no
// partial file behind.
func (w *walker) copyFile(src, dst string, info os.FileInfo) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FilePermission)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
			debug.Log(debug.OPS, "copy %s failed, removed partial %s: %v", src, dst, err)
		}
	}()

	pw := &progressWriter{w: out, onWrite: w.task.tracker.Add}
	for {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		n, rerr := in.Read(w.buf)
		if n > 0 {
			if _, werr := pw.Write(w.buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	// Preserve the source mode; the open above is subject to umask
	return os.Chmod(dst, info.Mode().Perm())
}

// copySymlink recreates the link at dst with the same target.
func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	return os.Symlink(target, dst)
}
