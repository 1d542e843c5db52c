package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/justyntemme/razorops/internal/debug"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

const (
	dirPermission  = 0o755
	filePermission = 0o644
)

// Extract unpacks container into dest, creating dest when needed. The kind is
// inferred from the container name. Entries whose names or link targets would
// escape dest fail with ErrUnsafePath.
func Extract(ctx context.Context, container, dest string) error {
	kind, err := KindFromPath(container)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, dirPermission); err != nil {
		return err
	}
	dest, err = filepath.Abs(dest)
	if err != nil {
		return err
	}

	var n int
	switch kind {
	case Zip:
		n, err = extractZip(ctx, container, dest)
	default:
		n, err = extractTarFile(ctx, container, dest, kind)
	}
	if err != nil {
		return fmt.Errorf("extract %s: %w", container, err)
	}
	debug.Log(debug.ARCHIVE, "extracted %d entries from %s into %s", n, container, dest)
	return nil
}

func extractZip(ctx context.Context, container, dest string) (int, error) {
	// A reader that comes back alongside an error flagged non-local names;
	// safeJoin reports those per entry.
	zr, err := zip.OpenReader(container)
	if zr == nil {
		return 0, err
	}
	defer zr.Close()

	for i, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return i, err
		}
		mode := f.Mode()

		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, dirPermission); err != nil {
				return i, err
			}
		case mode&os.ModeSymlink != 0:
			rc, err := f.Open()
			if err != nil {
				return i, err
			}
			linkTarget, err := io.ReadAll(io.LimitReader(rc, 4096))
			rc.Close()
			if err != nil {
				return i, err
			}
			if err := writeSymlink(dest, target, string(linkTarget)); err != nil {
				return i, err
			}
		default:
			rc, err := f.Open()
			if err != nil {
				return i, err
			}
			err = writeFile(target, rc, mode.Perm())
			rc.Close()
			if err != nil {
				return i, err
			}
		}
	}
	return len(zr.File), nil
}

func extractTarFile(ctx context.Context, container, dest string, kind Kind) (int, error) {
	f, err := os.Open(container)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var r io.Reader = f
	switch kind {
	case TarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, err
		}
		defer gz.Close()
		r = gz
	case TarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return 0, err
		}
		defer zr.Close()
		r = zr
	}
	return extractTar(ctx, r, dest)
}

func extractTar(ctx context.Context, r io.Reader, dest string) (int, error) {
	tr := tar.NewReader(r)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return n, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirPermission); err != nil {
				return n, err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return n, err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(dest, target, hdr.Linkname); err != nil {
				return n, err
			}
		default:
			debug.Log(debug.ARCHIVE, "skipping %s (type %c)", hdr.Name, hdr.Typeflag)
			continue
		}
		n++
	}
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), dirPermission); err != nil {
		return err
	}
	if perm == 0 {
		perm = filePermission
	}
	if err := unlinkSymlink(target); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeSymlink(dest, target, linkTarget string) error {
	if err := safeLink(dest, target, linkTarget); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), dirPermission); err != nil {
		return err
	}
	if err := unlinkSymlink(target); err != nil {
		return err
	}
	return os.Symlink(linkTarget, target)
}

// unlinkSymlink removes a symlink left at target by an earlier entry so the
// write replaces the link instead of following it.
func unlinkSymlink(target string) error {
	info, err := os.Lstat(target)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	return os.Remove(target)
}
