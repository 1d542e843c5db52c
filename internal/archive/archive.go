// Package archive compresses file trees into containers and extracts them
// again. Supported containers are zip, tar, tar.gz and tar.zst.
package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// Kind is a container format.
type Kind string

const (
	Zip    Kind = "zip"
	Tar    Kind = "tar"
	TarGz  Kind = "tar.gz"
	TarZst Kind = "tar.zst"
)

var (
	ErrUnknownKind = errors.New("unknown archive kind")
	ErrUnsafePath  = errors.New("archive entry escapes the destination")
)

// Kinds lists the supported formats.
func Kinds() []Kind { return []Kind{Zip, Tar, TarGz, TarZst} }

// Extension returns the file extension for k, including the dot.
func (k Kind) Extension() string { return "." + string(k) }

// ParseKind accepts a kind name with or without a leading dot.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimPrefix(strings.ToLower(s), ".")
	switch s {
	case "tgz":
		return TarGz, nil
	case "tzst":
		return TarZst, nil
	}
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

// KindFromPath infers the kind from a container's file name.
func KindFromPath(path string) (Kind, error) {
	lower := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TarGz, nil
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return TarZst, nil
	case strings.HasSuffix(lower, ".tar"):
		return Tar, nil
	case strings.HasSuffix(lower, ".zip"):
		return Zip, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnknownKind)
}

// StripExtension returns the container name without its archive extension,
// used as the default extraction directory name.
func StripExtension(path string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, ext := range []string{".tar.gz", ".tar.zst", ".tgz", ".tzst", ".tar", ".zip"} {
		if strings.HasSuffix(lower, ext) && len(base) > len(ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

// entry is one file system object to archive.
type entry struct {
	path string // on disk
	name string // slash separated name inside the archive
	info os.FileInfo
}

// collect lists sources and everything below them, sorted by archive name so
// the output is reproducible. Each source is stored under its base name.
func collect(sources []string) ([]entry, error) {
	var (
		mu      sync.Mutex
		entries []entry
	)
	conf := &fastwalk.Config{Follow: false}
	for _, src := range sources {
		src = filepath.Clean(src)
		parent := filepath.Dir(src)
		err := fastwalk.Walk(conf, src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			info, err := os.Lstat(path)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(parent, path)
			if err != nil {
				return err
			}
			mu.Lock()
			entries = append(entries, entry{path: path, name: filepath.ToSlash(rel), info: info})
			mu.Unlock()
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries, nil
}

// safeJoin resolves an archive entry name under dest, rejecting names that
// would land outside it, either lexically or through a symlink an earlier
// entry placed on one of the parent directories.
func safeJoin(dest, name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	if err := noLinkedParents(dest, rel); err != nil {
		return "", fmt.Errorf("%q: %w", name, err)
	}
	return target, nil
}

// noLinkedParents walks the directories between dest and the entry at rel and
// fails when one of them is a symlink.
func noLinkedParents(dest, rel string) error {
	parts := strings.Split(rel, string(filepath.Separator))
	cur := dest
	for _, part := range parts[:len(parts)-1] {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("parent %s is a symlink: %w", cur, ErrUnsafePath)
		}
	}
	return nil
}

// safeLink rejects symlinks whose target resolves outside dest.
func safeLink(dest, linkPath, target string) error {
	if filepath.IsAbs(target) {
		return fmt.Errorf("link %q -> %q: %w", linkPath, target, ErrUnsafePath)
	}
	resolved := filepath.Join(filepath.Dir(linkPath), target)
	rel, err := filepath.Rel(dest, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("link %q -> %q: %w", linkPath, target, ErrUnsafePath)
	}
	return nil
}
