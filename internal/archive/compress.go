package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/justyntemme/razorops/internal/debug"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Compress writes sources into a new container of the given kind. The
// container is written to a temporary sibling and renamed into place, so a
// failed or cancelled run leaves nothing behind.
func Compress(ctx context.Context, sources []string, container string, kind Kind) (err error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("compress %s: no sources", container)
	}

	entries, err := collect(sources)
	if err != nil {
		return fmt.Errorf("compress %s: %w", container, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(container), "."+filepath.Base(container)+".*.part")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	switch kind {
	case Zip:
		err = writeZip(ctx, tmp, entries)
	case Tar:
		err = writeTar(ctx, tmp, entries)
	case TarGz:
		gz := gzip.NewWriter(tmp)
		if err = writeTar(ctx, gz, entries); err == nil {
			err = gz.Close()
		}
	case TarZst:
		var zw *zstd.Encoder
		if zw, err = zstd.NewWriter(tmp); err != nil {
			return err
		}
		if err = writeTar(ctx, zw, entries); err == nil {
			err = zw.Close()
		} else {
			zw.Close()
		}
	}
	if err != nil {
		return fmt.Errorf("compress %s: %w", container, err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), container); err != nil {
		return err
	}
	debug.Log(debug.ARCHIVE, "compressed %d entries into %s (%s)", len(entries), container, kind)
	return nil
}

func writeZip(ctx context.Context, w io.Writer, entries []entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}

		header, err := zip.FileInfoHeader(e.info)
		if err != nil {
			zw.Close()
			return err
		}
		header.Name = e.name
		if e.info.IsDir() {
			header.Name += "/"
		} else if e.info.Mode().IsRegular() {
			header.Method = zip.Deflate
		}

		out, err := zw.CreateHeader(header)
		if err != nil {
			zw.Close()
			return err
		}

		switch {
		case e.info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(e.path)
			if err != nil {
				zw.Close()
				return err
			}
			if _, err := io.WriteString(out, target); err != nil {
				zw.Close()
				return err
			}
		case e.info.Mode().IsRegular():
			if err := copyFrom(out, e.path); err != nil {
				zw.Close()
				return err
			}
		}
	}
	return zw.Close()
}

func writeTar(ctx context.Context, w io.Writer, entries []entry) error {
	tw := tar.NewWriter(w)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		var link string
		if e.info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(e.path)
			if err != nil {
				return err
			}
			link = target
		}
		header, err := tar.FileInfoHeader(e.info, link)
		if err != nil {
			return err
		}
		header.Name = e.name
		if e.info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if e.info.Mode().IsRegular() {
			if err := copyFrom(tw, e.path); err != nil {
				return err
			}
		}
	}
	return tw.Close()
}

func copyFrom(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
